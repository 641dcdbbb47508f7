package dto

// SessionRequest is the body of create and update calls.
type SessionRequest struct {
	TrainingYearID int64   `json:"annee_id" validate:"required,gt=0"`
	TimeStart      string  `json:"heure_debut" validate:"required,hms"`
	TimeEnd        string  `json:"heure_fin" validate:"required,hms"`
	DateStart      string  `json:"date_debut" validate:"required,ymd"`
	DateEnd        string  `json:"date_fin" validate:"required,ymd"`
	Competencies   []int64 `json:"competences" validate:"omitempty,dive,gt=0"`
}

// SessionListQuery captures list filters from the query string.
type SessionListQuery struct {
	TrainingYearID *int64 `form:"annee_id"`
	DateFrom       string `form:"date_debut" validate:"omitempty,ymd"`
	DateTo         string `form:"date_fin" validate:"omitempty,ymd"`
	Page           int    `form:"page"`
	PageSize       int    `form:"page_size"`
}

// PeriodQuery is a mandatory date range.
type PeriodQuery struct {
	DateFrom string `form:"date_debut" validate:"required,ymd"`
	DateTo   string `form:"date_fin" validate:"required,ymd"`
}
