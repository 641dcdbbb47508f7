package models

import "time"

// Session is one timetable entry (emploi du temps) for a training year.
// Dates are YYYY-MM-DD and times HH:MM:SS.
type Session struct {
	ID             int64     `db:"id" json:"id"`
	TrainingYearID int64     `db:"training_year_id" json:"annee_id"`
	DateStart      string    `db:"date_start" json:"date_debut"`
	DateEnd        string    `db:"date_end" json:"date_fin"`
	TimeStart      string    `db:"time_start" json:"heure_debut"`
	TimeEnd        string    `db:"time_end" json:"heure_fin"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// SessionCompetency links a session to a competency taught during it.
type SessionCompetency struct {
	SessionID    int64 `db:"session_id" json:"emploi_du_temps_id"`
	CompetencyID int64 `db:"competency_id" json:"competence_id"`
}

// SessionDetail is a session with its year and linked competencies resolved.
type SessionDetail struct {
	Session
	Year         *TrainingYear      `json:"annee,omitempty"`
	Competencies []CompetencyDetail `json:"competences"`
}

// SessionFilter describes query params for listing sessions.
type SessionFilter struct {
	DepartmentIDs    []int64
	YearDepartmentID *int64
	TrainingYearID   *int64
	TrainerID        *int64
	DateFrom         string
	DateTo           string
	Page             int
	PageSize         int
}

// BusyWindow is a persisted session occurrence seen through one of its
// resources. TrainerID and RoomID are set when the row comes from a linked
// competency.
type BusyWindow struct {
	SessionID      int64  `db:"session_id"`
	TrainingYearID int64  `db:"training_year_id"`
	DateStart      string `db:"date_start"`
	DateEnd        string `db:"date_end"`
	TimeStart      string `db:"time_start"`
	TimeEnd        string `db:"time_end"`
	CompetencyID   *int64 `db:"competency_id"`
	TrainerID      *int64 `db:"trainer_id"`
	RoomID         *int64 `db:"room_id"`
}

// OccupancyQuery selects persisted windows touching any of the listed
// resources between two dates (inclusive).
type OccupancyQuery struct {
	DateFrom         string
	DateTo           string
	YearIDs          []int64
	TrainerIDs       []int64
	RoomIDs          []int64
	ExcludeSessionID *int64
}

// CompetencyWindow is one scheduled slot of a competency used for quota sums.
type CompetencyWindow struct {
	CompetencyID int64  `db:"competency_id"`
	SessionID    int64  `db:"session_id"`
	DateStart    string `db:"date_start"`
	TimeStart    string `db:"time_start"`
	TimeEnd      string `db:"time_end"`
}
