package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin         = "LOGIN"
	AuditActionRefresh       = "TOKEN_REFRESH"
	AuditActionLogout        = "LOGOUT"
	AuditActionSessionCreate = "SESSION_CREATE"
	AuditActionSessionUpdate = "SESSION_UPDATE"
	AuditActionSessionDelete = "SESSION_DELETE"
	AuditActionSessionMove   = "SESSION_MOVE"
	AuditActionGenerate      = "SESSION_GENERATE"
	AuditActionDuplicate     = "WEEK_DUPLICATE"

	AuditActionTimetableAnalysis = "TIMETABLE_ANALYSIS"
	AuditActionTimetableReport   = "TIMETABLE_REPORT"
)

// Audit resources.
const (
	AuditResourceAuth    = "auth"
	AuditResourceSession = "session"
	AuditResourceYear    = "training_year"
	AuditResourceDept    = "department"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *int64    `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditMeta carries the request origin recorded with audit entries.
type AuditMeta struct {
	IP        string
	UserAgent string
}
