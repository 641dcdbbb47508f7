package models

// Quota statuses.
const (
	QuotaStatusComplete   = "complete"
	QuotaStatusInProgress = "in_progress"
)

// QuotaStatus is the scheduled-versus-allotted snapshot of a competency.
type QuotaStatus struct {
	CompetencyID   int64   `json:"competence_id"`
	Name           string  `json:"nom"`
	Code           string  `json:"code"`
	TradeID        int64   `json:"metier_id"`
	TrainerID      *int64  `json:"formateur_id,omitempty"`
	HourlyQuota    float64 `json:"quota_horaire"`
	HoursScheduled float64 `json:"heures_planifiees"`
	HoursRemaining float64 `json:"heures_restantes"`
	PercentUsed    float64 `json:"pourcentage"`
	Status         string  `json:"statut"`
	SessionCount   int     `json:"nombre_seances"`
}

// TradeStatistics aggregates quota progress over a trade.
type TradeStatistics struct {
	TradeID            int64   `json:"metier_id"`
	TradeTitle         string  `json:"metier"`
	CompetencyCount    int     `json:"nombre_competences"`
	CompleteCount      int     `json:"competences_terminees"`
	TotalQuota         float64 `json:"quota_total"`
	TotalScheduled     float64 `json:"heures_planifiees"`
	TotalRemaining     float64 `json:"heures_restantes"`
	PercentUsed        float64 `json:"pourcentage"`
	DistinctTrainers   int     `json:"nombre_formateurs"`
	ScheduledSessionsN int     `json:"nombre_seances"`
}
