package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-api/internal/dto"
	"github.com/noah-isme/edt-api/internal/models"
	appErrors "github.com/noah-isme/edt-api/pkg/errors"
)

// Move outcomes reported to metrics.
const (
	moveOutcomeMoved    = "moved"
	moveOutcomeRejected = "rejected"
)

type auditReader interface {
	ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error)
}

// RescheduleConfig bounds the alternative-slot search.
type RescheduleConfig struct {
	SuggestionDays int
	MaxSuggestions int
}

// RescheduleService moves sessions and proposes alternatives when a move is
// blocked.
type RescheduleService struct {
	registry  *RegistryService
	quotas    *QuotaService
	conflicts *ConflictService
	sessions  sessionStore
	audit     auditWriter
	history   auditReader
	tx        txProvider
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       RescheduleConfig
}

// NewRescheduleService wires the reschedule engine.
func NewRescheduleService(
	registry *RegistryService,
	quotas *QuotaService,
	conflicts *ConflictService,
	sessions sessionStore,
	audit auditWriter,
	history auditReader,
	tx txProvider,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg RescheduleConfig,
) *RescheduleService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SuggestionDays <= 0 {
		cfg.SuggestionDays = 7
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = 5
	}
	return &RescheduleService{
		registry:  registry,
		quotas:    quotas,
		conflicts: conflicts,
		sessions:  sessions,
		audit:     audit,
		history:   history,
		tx:        tx,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

type moveAuditValues struct {
	Slot   dto.SlotView `json:"creneau"`
	Reason string       `json:"raison,omitempty"`
}

// Move relocates a session. A blocked move leaves the session untouched and
// returns the conflicts together with ranked alternative slots.
func (s *RescheduleService) Move(ctx context.Context, caller models.Caller, sessionID int64, req dto.MoveSessionRequest, meta models.AuditMeta) (*dto.MoveSessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid move payload")
	}
	start, err := parseClock(req.NewTimeStart)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	end, err := parseClock(req.NewTimeEnd)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if end <= start {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nouvelle_heure_fin must be after nouvelle_heure_debut")
	}
	newDay, err := parseDate(req.NewDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, internalError(err, "failed to load session")
	}
	comps, err := s.sessionCompetencies(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	year, err := s.registry.Year(ctx, session.TrainingYearID)
	if err != nil {
		return nil, err
	}
	if _, err := s.registry.AuthorizeScheduling(ctx, caller, year, comps); err != nil {
		return nil, err
	}

	span := 0
	if from, err1 := parseDate(session.DateStart); err1 == nil {
		if to, err2 := parseDate(session.DateEnd); err2 == nil {
			span = int(to.Sub(from).Hours() / 24)
		}
	}
	base := SlotProposal{TrainingYearID: session.TrainingYearID, ExcludeSessionID: &session.ID}
	compIDs := make([]int64, 0, len(comps))
	for _, c := range comps {
		compIDs = append(compIDs, c.ID)
		if c.TrainerID != nil {
			base.TrainerIDs = append(base.TrainerIDs, *c.TrainerID)
		}
		if c.RoomID != nil {
			base.RoomIDs = append(base.RoomIDs, *c.RoomID)
		}
	}
	base.TrainerIDs = uniqueIDs(base.TrainerIDs)
	base.RoomIDs = uniqueIDs(base.RoomIDs)
	proposal := base
	proposal.DateStart = req.NewDate
	proposal.DateEnd = formatDate(newDay.AddDate(0, 0, span))
	proposal.Start, proposal.End = start, end

	previous := dto.SlotView{DateStart: session.DateStart, DateEnd: session.DateEnd, TimeStart: session.TimeStart, TimeEnd: session.TimeEnd}
	current := dto.SlotView{DateStart: proposal.DateStart, DateEnd: proposal.DateEnd, TimeStart: formatClock(start), TimeEnd: formatClock(end)}

	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		oldDates, err := spanDates(session.DateStart, session.DateEnd)
		if err != nil {
			return internalError(err, "stored session has invalid dates")
		}
		newDates, err := spanDates(proposal.DateStart, proposal.DateEnd)
		if err != nil {
			return appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		if err := s.sessions.LockDates(ctx, tx, append(oldDates, newDates...)); err != nil {
			return internalError(err, "failed to lock session dates")
		}
		locked, err := s.sessions.FindByIDForUpdate(ctx, tx, sessionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "session not found")
			}
			return internalError(err, "failed to lock session")
		}

		conflicts := policyConflicts(proposal.DateStart, start, end)
		persisted, err := s.conflicts.Check(ctx, tx, proposal)
		if err != nil {
			return err
		}
		conflicts = append(conflicts, persisted...)
		if len(conflicts) > 0 {
			suggestions, err := s.suggest(ctx, tx, base, newDay, end-start, span)
			if err != nil {
				return err
			}
			return conflictError("the requested slot is not available", conflicts, suggestions)
		}

		locked.DateStart = proposal.DateStart
		locked.DateEnd = proposal.DateEnd
		locked.TimeStart = current.TimeStart
		locked.TimeEnd = current.TimeEnd
		if err := s.sessions.Update(ctx, tx, locked); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "session not found")
			}
			return internalError(err, "failed to move session")
		}
		if err := writeAudit(ctx, s.audit, tx, caller, models.AuditActionSessionMove, models.AuditResourceSession, sessionID,
			moveAuditValues{Slot: previous}, moveAuditValues{Slot: current, Reason: req.Reason}, meta); err != nil {
			return internalError(err, "failed to record move history")
		}
		return nil
	})
	if err != nil {
		var conflict *models.ConflictError
		if errors.As(err, &conflict) {
			s.metrics.RecordMove(moveOutcomeRejected)
		}
		return nil, err
	}

	s.quotas.Invalidate(ctx, compIDs)
	s.metrics.RecordMove(moveOutcomeMoved)
	s.logger.Info("session moved",
		zap.Int64("session_id", sessionID),
		zap.String("from", previous.DateStart+" "+previous.TimeStart),
		zap.String("to", current.DateStart+" "+current.TimeStart),
	)
	return &dto.MoveSessionResponse{SessionID: sessionID, Previous: previous, Current: current, Reason: req.Reason}, nil
}

// suggest scans the days following the requested date for conflict-free
// hourly starts of the same duration.
func (s *RescheduleService) suggest(ctx context.Context, exec sqlx.QueryerContext, base SlotProposal, requested time.Time, duration, span int) ([]models.SlotSuggestion, error) {
	q := base.query()
	q.DateFrom = formatDate(requested)
	q.DateTo = formatDate(requested.AddDate(0, 0, s.cfg.SuggestionDays-1+span))
	occ, err := s.conflicts.Snapshot(ctx, exec, q)
	if err != nil {
		return nil, err
	}

	var out []models.SlotSuggestion
	for d := 0; d < s.cfg.SuggestionDays && len(out) < s.cfg.MaxSuggestions; d++ {
		day := requested.AddDate(0, 0, d)
		if day.Weekday() == time.Sunday {
			continue
		}
		for hour := openingMinute / 60; hour <= 16; hour++ {
			start := hour * 60
			end := start + duration
			if end > closingMinute || overlaps(start, end, lunchStartMinute, lunchEndMinute) {
				continue
			}
			p := base
			p.DateStart = formatDate(day)
			p.DateEnd = formatDate(day.AddDate(0, 0, span))
			p.Start, p.End = start, end
			if len(occ.Conflicts(p)) > 0 {
				continue
			}
			out = append(out, models.SlotSuggestion{
				Date:      p.DateStart,
				Weekday:   weekdayName(day),
				TimeStart: formatClock(start),
				TimeEnd:   formatClock(end),
				Score:     suggestionScore(d, hour),
			})
			if len(out) >= s.cfg.MaxSuggestions {
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return out, nil
}

// suggestionScore ranks closer days first, then mornings before afternoons.
func suggestionScore(daysAway, hour int) int {
	if daysAway < 0 {
		daysAway = -daysAway
	}
	penalty := 5
	switch {
	case hour >= 8 && hour <= 11:
		penalty = 0
	case hour >= 14 && hour <= 16:
		penalty = 2
	}
	return daysAway*10 + penalty
}

// History returns the audit trail of a session, newest first.
func (s *RescheduleService) History(ctx context.Context, caller models.Caller, sessionID int64) ([]models.AuditLog, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, internalError(err, "failed to load session")
	}
	comps, err := s.sessionCompetencies(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	year, err := s.registry.Year(ctx, session.TrainingYearID)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(ctx, s.registry, caller, year, comps); err != nil {
		return nil, err
	}
	logs, err := s.history.ListByResource(ctx, models.AuditResourceSession, strconv.FormatInt(sessionID, 10), 100)
	if err != nil {
		return nil, internalError(err, "failed to load session history")
	}
	return logs, nil
}

func (s *RescheduleService) sessionCompetencies(ctx context.Context, sessionID int64) ([]models.CompetencyDetail, error) {
	links, err := s.sessions.ListCompetencyLinks(ctx, []int64{sessionID})
	if err != nil {
		return nil, internalError(err, "failed to load session competencies")
	}
	ids := make([]int64, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.CompetencyID)
	}
	comps, err := s.registry.LoadCompetencies(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.CompetencyDetail, 0, len(comps))
	for _, id := range uniqueIDs(ids) {
		out = append(out, comps[id])
	}
	return out, nil
}
