package dto

// AnalysisRequest scopes analysis to a department and period.
type AnalysisRequest struct {
	DepartmentID int64  `json:"departement_id" validate:"required,gt=0"`
	DateStart    string `json:"date_debut" validate:"required,ymd"`
	DateEnd      string `json:"date_fin" validate:"required,ymd"`
}

// TrainerLoad counts the sessions delivered by one trainer.
type TrainerLoad struct {
	TrainerID  int64   `json:"formateur_id"`
	Name       string  `json:"formateur"`
	Sessions   int     `json:"nb_creneaux"`
	WeeklyLoad float64 `json:"charge_hebdomadaire"`
}

// Pair conflict types.
const (
	PairConflictYear    = "annee"
	PairConflictTrainer = "formateur"
)

// PairConflict is a clash between two persisted sessions.
type PairConflict struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	FirstID    int64  `json:"emploi1_id"`
	SecondID   int64  `json:"emploi2_id"`
	ResourceID int64  `json:"resource_id"`
}

// AnalysisResponse is the outcome of a timetable analysis.
type AnalysisResponse struct {
	TotalSessions int            `json:"total_creneaux"`
	Distribution  []TrainerLoad  `json:"repartition_formateurs"`
	Conflicts     []PairConflict `json:"conflits_detectes"`
	Suggestions   []string       `json:"suggestions_optimisation"`
}

// RoomOccupancy describes how busy a room was over the period.
type RoomOccupancy struct {
	RoomID    int64   `json:"salle_id"`
	Name      string  `json:"salle"`
	Rate      float64 `json:"taux_occupation"`
	Occupied  int     `json:"creneaux_occupes"`
	Available int     `json:"creneaux_possibles"`
}

// BlockUsage counts sessions starting at a standard block.
type BlockUsage struct {
	Start string `json:"heure_debut"`
	Count int    `json:"utilisation"`
}

// OccupancyReport is the department occupancy report.
type OccupancyReport struct {
	DateStart       string          `json:"date_debut"`
	DateEnd         string          `json:"date_fin"`
	Department      string          `json:"departement"`
	Rooms           []RoomOccupancy `json:"occupation_salles"`
	Trainers        []TrainerLoad   `json:"charge_formateurs"`
	Blocks          []BlockUsage    `json:"utilisation_creneaux"`
	Recommendations []string        `json:"recommandations"`
}

// ReorganizationProposal suggests how to resolve one detected conflict.
type ReorganizationProposal struct {
	ConflictID  string `json:"conflit_id"`
	Solution    string `json:"type_solution"`
	Description string `json:"description"`
	Feasibility string `json:"faisabilite"`
}

// ReorganizationResponse lists proposals and an overall feasibility grade.
type ReorganizationResponse struct {
	ConflictCount int                      `json:"conflits_detectes"`
	Proposals     []ReorganizationProposal `json:"propositions"`
	Feasibility   string                   `json:"faisabilite"`
}
