package dto

import "github.com/noah-isme/edt-api/internal/models"

// PlanCompetencyRequest describes the demand for one competency in a planning run.
type PlanCompetencyRequest struct {
	ID          int64 `json:"id" validate:"required,gt=0"`
	Duration    int   `json:"duree_cours" validate:"required,min=1,max=5"`
	MaxSessions *int  `json:"max_seances" validate:"omitempty,min=1"`
}

// PlanRequest drives both the unlimited and the capped allocator.
type PlanRequest struct {
	TrainingYearID   int64                   `json:"annee_id" validate:"required,gt=0"`
	DateStart        string                  `json:"date_debut" validate:"required,ymd"`
	DateEnd          string                  `json:"date_fin" validate:"omitempty,ymd"`
	Competencies     []PlanCompetencyRequest `json:"competences" validate:"required,min=1,dive"`
	MaxPerCompetency int                     `json:"max_seances_par_competence" validate:"omitempty,min=1"`
}

// DepartmentGenerateRequest asks for a resource-aware fill of a department's years.
type DepartmentGenerateRequest struct {
	DepartmentID int64  `json:"departement_id" validate:"required,gt=0"`
	DateStart    string `json:"date_debut" validate:"required,ymd"`
	DateEnd      string `json:"date_fin" validate:"required,ymd"`
}

// PlannedSession is one slot produced by a generation run.
type PlannedSession struct {
	SessionID      int64   `json:"id,omitempty"`
	TrainingYearID int64   `json:"annee_id"`
	Date           string  `json:"date"`
	Weekday        string  `json:"jour"`
	TimeStart      string  `json:"heure_debut"`
	TimeEnd        string  `json:"heure_fin"`
	CompetencyIDs  []int64 `json:"competences"`
	CompetencyName string  `json:"competence,omitempty"`
	TrainerIDs     []int64 `json:"formateurs,omitempty"`
	RoomIDs        []int64 `json:"salles,omitempty"`
}

// QuotaDelta reports remaining hours before and after a run.
type QuotaDelta struct {
	CompetencyID    int64   `json:"competence_id"`
	Name            string  `json:"nom"`
	Requested       int     `json:"seances_demandees"`
	SessionsCreated int     `json:"seances_creees"`
	HoursBefore     float64 `json:"quota_avant"`
	HoursAfter      float64 `json:"quota_apres"`
}

// UnplacedCompetency explains why a competency received fewer sessions than requested.
type UnplacedCompetency struct {
	CompetencyID int64  `json:"competence_id"`
	Missing      int    `json:"seances_manquantes"`
	Reason       string `json:"raison"`
}

// PlanResponse summarises a generation run.
type PlanResponse struct {
	RunID     string               `json:"run_id"`
	Strategy  string               `json:"strategie"`
	State     string               `json:"etat"`
	Created   int                  `json:"creneaux_crees"`
	Planning  []PlannedSession     `json:"planification"`
	Quotas    []QuotaDelta         `json:"quotas_mis_a_jour,omitempty"`
	Unplaced  []UnplacedCompetency `json:"non_planifiees,omitempty"`
	DateStart string               `json:"date_debut"`
	DateEnd   string               `json:"date_fin"`
}

// MoveSessionRequest relocates an existing session.
type MoveSessionRequest struct {
	NewDate      string `json:"nouvelle_date" validate:"required,ymd"`
	NewTimeStart string `json:"nouvelle_heure_debut" validate:"required,hms"`
	NewTimeEnd   string `json:"nouvelle_heure_fin" validate:"required,hms"`
	Reason       string `json:"raison_deplacement" validate:"omitempty,max=500"`
}

// SlotView is a date plus time window.
type SlotView struct {
	DateStart string `json:"date_debut"`
	DateEnd   string `json:"date_fin"`
	TimeStart string `json:"heure_debut"`
	TimeEnd   string `json:"heure_fin"`
}

// MoveSessionResponse returns the previous and the new slot of a moved session.
type MoveSessionResponse struct {
	SessionID int64    `json:"emploi_du_temps_id"`
	Previous  SlotView `json:"ancien_creneau"`
	Current   SlotView `json:"nouveau_creneau"`
	Reason    string   `json:"raison,omitempty"`
}

// DuplicateWeekRequest copies the sessions of one week onto another.
type DuplicateWeekRequest struct {
	TrainingYearID int64  `json:"annee_id" validate:"required,gt=0"`
	SourceWeek     string `json:"semaine_source" validate:"required,ymd"`
	TargetWeek     string `json:"semaine_cible" validate:"required,ymd"`
	Replace        bool   `json:"remplacer"`
}

// SkippedCopy is a source session that could not be copied.
type SkippedCopy struct {
	SourceSessionID int64                    `json:"emploi_du_temps_source_id"`
	Date            string                   `json:"date"`
	TimeStart       string                   `json:"heure_debut"`
	TimeEnd         string                   `json:"heure_fin"`
	Conflicts       []models.SessionConflict `json:"conflicts"`
}

// DuplicateWeekResponse reports the outcome of a week duplication.
type DuplicateWeekResponse struct {
	SourceWeek string                 `json:"semaine_source"`
	TargetWeek string                 `json:"semaine_cible"`
	Deleted    int                    `json:"supprimees"`
	Created    []models.SessionDetail `json:"creees"`
	Skipped    []SkippedCopy          `json:"ignorees"`
}
