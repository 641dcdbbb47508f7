package models

import "fmt"

// Conflict dimensions.
const (
	ConflictYear         = "YEAR"
	ConflictTrainer      = "TRAINER"
	ConflictRoom         = "ROOM"
	ConflictOpeningHours = "OPENING_HOURS"
	ConflictLunchBreak   = "LUNCH_BREAK"
)

// SessionConflict describes one violation found for a proposed window.
type SessionConflict struct {
	Dimension  string `json:"type"`
	ResourceID int64  `json:"resource_id,omitempty"`
	SessionID  int64  `json:"emploi_du_temps_id,omitempty"`
	Date       string `json:"date,omitempty"`
	TimeStart  string `json:"heure_debut,omitempty"`
	TimeEnd    string `json:"heure_fin,omitempty"`
	Message    string `json:"message"`
}

// SlotSuggestion is a conflict-free alternative offered when a move is rejected.
type SlotSuggestion struct {
	Date      string `json:"date"`
	Weekday   string `json:"jour"`
	TimeStart string `json:"heure_debut"`
	TimeEnd   string `json:"heure_fin"`
	Score     int    `json:"score"`
}

// ConflictError is returned when a proposed window collides with existing
// sessions or violates the opening-hours policy.
type ConflictError struct {
	Message     string            `json:"message"`
	Conflicts   []SessionConflict `json:"conflicts"`
	Suggestions []SlotSuggestion  `json:"suggestions,omitempty"`
}

// Error implements the error interface for conflict errors.
func (e *ConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if len(e.Conflicts) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (%d conflicts)", e.Message, len(e.Conflicts))
}
