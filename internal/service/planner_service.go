package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-api/internal/dto"
	"github.com/noah-isme/edt-api/internal/models"
	appErrors "github.com/noah-isme/edt-api/pkg/errors"
)

// PlannerConfig bounds the allocator search.
type PlannerConfig struct {
	LookaheadDays int
}

// PlannerService allocates sessions into the hour grid for a training year
// or, resource-aware, for every year of a department.
type PlannerService struct {
	registry  *RegistryService
	quotas    *QuotaService
	conflicts *ConflictService
	sessions  sessionStore
	audit     auditWriter
	tx        txProvider
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       PlannerConfig
}

// NewPlannerService wires the allocator.
func NewPlannerService(
	registry *RegistryService,
	quotas *QuotaService,
	conflicts *ConflictService,
	sessions sessionStore,
	audit auditWriter,
	tx txProvider,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg PlannerConfig,
) *PlannerService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LookaheadDays <= 0 {
		cfg.LookaheadDays = 30
	}
	return &PlannerService{
		registry:  registry,
		quotas:    quotas,
		conflicts: conflicts,
		sessions:  sessions,
		audit:     audit,
		tx:        tx,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// demand is the work left for one competency in a run.
type demand struct {
	competency models.CompetencyDetail
	duration   int
	before     float64
	count      int
	placed     int
	trainerIDs []int64
	roomIDs    []int64
}

type placement struct {
	demand    *demand
	date      string
	start     int
	end       int
	sessionID int64
}

// GenerateUnlimited places as many sessions as each competency's remaining
// quota requires.
func (s *PlannerService) GenerateUnlimited(ctx context.Context, caller models.Caller, req dto.PlanRequest, meta models.AuditMeta) (*dto.PlanResponse, error) {
	return s.plan(ctx, caller, req, meta, StrategyUnlimited)
}

// GenerateCapped is GenerateUnlimited bounded by a per-competency session
// cap, checked against persisted trainer and room bookings too.
func (s *PlannerService) GenerateCapped(ctx context.Context, caller models.Caller, req dto.PlanRequest, meta models.AuditMeta) (*dto.PlanResponse, error) {
	return s.plan(ctx, caller, req, meta, StrategyCapped)
}

func (s *PlannerService) plan(ctx context.Context, caller models.Caller, req dto.PlanRequest, meta models.AuditMeta, strategy string) (*dto.PlanResponse, error) {
	started := time.Now()
	run := newGenerationRun(strategy, s.logger)

	if err := s.validator.Struct(req); err != nil {
		return nil, run.reject(validationError(err, "invalid planning payload"))
	}
	days, err := s.horizon(req.DateStart, req.DateEnd)
	if err != nil {
		return nil, run.reject(err)
	}
	ids := make([]int64, 0, len(req.Competencies))
	caps := make(map[int64]int, len(req.Competencies))
	seen := make(map[int64]struct{}, len(req.Competencies))
	for _, item := range req.Competencies {
		if _, dup := seen[item.ID]; dup {
			return nil, run.reject(appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("competency %d is listed twice", item.ID)))
		}
		seen[item.ID] = struct{}{}
		ids = append(ids, item.ID)
		if strategy == StrategyCapped {
			limit := req.MaxPerCompetency
			if item.MaxSessions != nil {
				limit = *item.MaxSessions
			}
			if limit <= 0 {
				return nil, run.reject(appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("competency %d needs max_seances or max_seances_par_competence", item.ID)))
			}
			caps[item.ID] = limit
		}
	}

	run.advance(RunValidatingRights)
	year, err := s.registry.Year(ctx, req.TrainingYearID)
	if err != nil {
		return nil, run.reject(err)
	}
	comps, err := s.registry.LoadCompetencies(ctx, ids)
	if err != nil {
		return nil, run.reject(err)
	}
	ordered := make([]models.CompetencyDetail, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, comps[id])
	}
	if _, err := s.registry.AuthorizeScheduling(ctx, caller, year, ordered); err != nil {
		return nil, run.reject(err)
	}

	dates := make([]string, 0, len(days))
	for _, d := range days {
		dates = append(dates, formatDate(d))
	}

	var (
		demands    []*demand
		placements []placement
	)
	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.sessions.LockDates(ctx, tx, dates); err != nil {
			return internalError(err, "failed to lock planning dates")
		}

		run.advance(RunCheckingConflicts)
		hours, _, err := s.quotas.HoursByCompetency(ctx, tx, ids)
		if err != nil {
			return err
		}
		open := 0
		for i, item := range req.Competencies {
			d := newDemand(ordered[i], item.Duration, hours[item.ID])
			if limit, ok := caps[item.ID]; ok && d.count > limit {
				d.count = limit
			}
			if d.count > 0 {
				open++
			}
			demands = append(demands, d)
		}
		if open == 0 {
			return appErrors.Clone(appErrors.ErrValidation, "every requested competency has exhausted its hourly quota")
		}

		q := models.OccupancyQuery{DateFrom: dates[0], DateTo: dates[len(dates)-1], YearIDs: []int64{year.ID}}
		if strategy == StrategyCapped {
			for _, d := range demands {
				q.TrainerIDs = append(q.TrainerIDs, d.trainerIDs...)
				q.RoomIDs = append(q.RoomIDs, d.roomIDs...)
			}
			q.TrainerIDs = uniqueIDs(q.TrainerIDs)
			q.RoomIDs = uniqueIDs(q.RoomIDs)
		}
		occ, err := s.conflicts.Snapshot(ctx, tx, q)
		if err != nil {
			return err
		}

		placements = allocate(days, demands, occ, year.ID)
		if len(placements) == 0 {
			return appErrors.Clone(appErrors.ErrScheduleConflict, "no free slot found between "+dates[0]+" and "+dates[len(dates)-1])
		}

		run.advance(RunPersisting)
		for i := range placements {
			p := &placements[i]
			session := &models.Session{
				TrainingYearID: year.ID,
				DateStart:      p.date,
				DateEnd:        p.date,
				TimeStart:      formatClock(p.start),
				TimeEnd:        formatClock(p.end),
			}
			if err := s.sessions.Create(ctx, tx, session); err != nil {
				return internalError(err, "failed to persist generated session")
			}
			if err := s.sessions.AttachCompetencies(ctx, tx, session.ID, []int64{p.demand.competency.ID}); err != nil {
				return internalError(err, "failed to link generated session")
			}
			p.sessionID = session.ID
		}

		summary := map[string]any{"run_id": run.id, "strategy": strategy, "created": len(placements), "date_debut": dates[0], "date_fin": dates[len(dates)-1]}
		if err := writeAudit(ctx, s.audit, tx, caller, models.AuditActionGenerate, models.AuditResourceYear, year.ID, nil, summary, meta); err != nil {
			return internalError(err, "failed to record generation audit")
		}
		return nil
	})
	if err != nil {
		return nil, run.reject(err)
	}

	s.quotas.Invalidate(ctx, ids)
	s.metrics.RecordSessionsCreated(strategy, len(placements))
	s.metrics.ObserveGeneration(strategy, time.Since(started))
	run.finish(len(placements))

	resp := &dto.PlanResponse{
		RunID:     run.id,
		Strategy:  strategy,
		State:     string(run.state),
		Created:   len(placements),
		Planning:  plannedSessions(placements, year.ID),
		DateStart: dates[0],
		DateEnd:   dates[len(dates)-1],
	}
	for _, d := range demands {
		after := math.Max(0, round2(d.before-float64(d.placed*d.duration)))
		resp.Quotas = append(resp.Quotas, dto.QuotaDelta{
			CompetencyID:    d.competency.ID,
			Name:            d.competency.Name,
			Requested:       d.count,
			SessionsCreated: d.placed,
			HoursBefore:     d.before,
			HoursAfter:      after,
		})
		switch {
		case d.before <= 0:
			resp.Unplaced = append(resp.Unplaced, dto.UnplacedCompetency{CompetencyID: d.competency.ID, Reason: "hourly quota exhausted"})
		case d.placed < d.count:
			resp.Unplaced = append(resp.Unplaced, dto.UnplacedCompetency{CompetencyID: d.competency.ID, Missing: d.count - d.placed, Reason: "no free slot left in the horizon"})
		}
	}
	return resp, nil
}

// horizon lists the working dates of a run: from start to date_fin or the
// last day of the lookahead window (start included), whichever comes first,
// Sundays excluded.
func (s *PlannerService) horizon(start, end string) ([]time.Time, error) {
	from, err := parseDate(start)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	last := from.AddDate(0, 0, s.cfg.LookaheadDays-1)
	if end != "" {
		to, err := parseDate(end)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		if to.Before(from) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date_fin must not be before date_debut")
		}
		if to.Before(last) {
			last = to
		}
	}
	var days []time.Time
	for d := from; !d.After(last); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	if len(days) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "the planning period contains no working day")
	}
	return days, nil
}

func newDemand(c models.CompetencyDetail, duration int, scheduled float64) *demand {
	d := &demand{competency: c, duration: duration, before: hoursRemaining(c.HourlyQuota, scheduled)}
	if d.before > 0 && duration > 0 {
		d.count = int(math.Ceil(d.before / float64(duration)))
	}
	if c.TrainerID != nil {
		d.trainerIDs = []int64{*c.TrainerID}
	}
	if c.RoomID != nil {
		d.roomIDs = []int64{*c.RoomID}
	}
	return d
}

// allocate walks the horizon day by day. Each competency gets at most one
// session per day; its grid cursor moves two blocks after every placement
// so consecutive sessions land at different hours.
func allocate(days []time.Time, demands []*demand, occ *Occupancy, yearID int64) []placement {
	var out []placement
	offsets := make(map[int64]int, len(demands))
	claim := int64(0)
	for _, day := range days {
		date := formatDate(day)
		for _, d := range demands {
			if d.placed >= d.count {
				continue
			}
			id := d.competency.ID
			for attempt := 0; attempt < len(hourGrid); attempt++ {
				start, end, ok := slotRun(offsets[id]+attempt, d.duration)
				if !ok {
					continue
				}
				p := SlotProposal{TrainingYearID: yearID, DateStart: date, DateEnd: date, Start: start, End: end, TrainerIDs: d.trainerIDs, RoomIDs: d.roomIDs}
				if len(occ.Conflicts(p)) > 0 {
					continue
				}
				claim--
				occ.Claim(p, claim)
				out = append(out, placement{demand: d, date: date, start: start, end: end})
				d.placed++
				offsets[id] += 2
				break
			}
		}
	}
	sortPlacements(out)
	return out
}

func sortPlacements(items []placement) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].date != items[j].date {
			return items[i].date < items[j].date
		}
		return items[i].start < items[j].start
	})
}

func plannedSessions(items []placement, yearID int64) []dto.PlannedSession {
	out := make([]dto.PlannedSession, 0, len(items))
	for _, p := range items {
		day, _ := parseDate(p.date)
		out = append(out, dto.PlannedSession{
			SessionID:      p.sessionID,
			TrainingYearID: yearID,
			Date:           p.date,
			Weekday:        weekdayName(day),
			TimeStart:      formatClock(p.start),
			TimeEnd:        formatClock(p.end),
			CompetencyIDs:  []int64{p.demand.competency.ID},
			CompetencyName: p.demand.competency.Name,
			TrainerIDs:     p.demand.trainerIDs,
			RoomIDs:        p.demand.roomIDs,
		})
	}
	return out
}
