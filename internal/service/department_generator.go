package service

import (
	"context"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edt-api/internal/dto"
	"github.com/noah-isme/edt-api/internal/models"
	appErrors "github.com/noah-isme/edt-api/pkg/errors"
)

// departmentBlock is one of the standard two-hour teaching blocks.
type departmentBlock struct {
	start int
	end   int
}

var departmentBlocks = []departmentBlock{
	{start: 8 * 60, end: 10 * 60},
	{start: 10*60 + 15, end: 12*60 + 15},
	{start: 14 * 60, end: 16 * 60},
	{start: 16*60 + 15, end: 18*60 + 15},
}

const (
	maxCompetenciesPerBlock = 2
	rotationWindowDays      = 7
)

type departmentSlot struct {
	yearID       int64
	date         string
	block        departmentBlock
	competencies []models.CompetencyDetail
	sessionID    int64
}

// departmentState is the in-memory board of a department run.
type departmentState struct {
	occ       *Occupancy
	remaining map[int64]float64
	history   map[int64][]string
	claims    int64
}

// GenerateForDepartment fills every weekday block of each training year of
// the department with up to two competencies whose trainer and room are
// free, preferring competencies taught least in the trailing week.
func (s *PlannerService) GenerateForDepartment(ctx context.Context, caller models.Caller, req dto.DepartmentGenerateRequest, meta models.AuditMeta) (*dto.PlanResponse, error) {
	started := time.Now()
	run := newGenerationRun(StrategyDepartment, s.logger)

	if err := s.validator.Struct(req); err != nil {
		return nil, run.reject(validationError(err, "invalid generation payload"))
	}
	from, _ := parseDate(req.DateStart)
	to, _ := parseDate(req.DateEnd)
	if !to.After(from) {
		return nil, run.reject(appErrors.Clone(appErrors.ErrValidation, "date_fin must be after date_debut"))
	}
	if to.Sub(from) >= time.Duration(s.cfg.LookaheadDays)*24*time.Hour {
		return nil, run.reject(appErrors.Clone(appErrors.ErrValidation, "the generation period exceeds the lookahead window"))
	}

	run.advance(RunValidatingRights)
	dept, err := s.registry.Department(ctx, req.DepartmentID)
	if err != nil {
		return nil, run.reject(err)
	}
	if _, err := s.registry.AuthorizeDepartment(ctx, caller, dept.ID); err != nil {
		return nil, run.reject(err)
	}
	years, err := s.registry.DepartmentYears(ctx, dept.ID)
	if err != nil {
		return nil, run.reject(err)
	}
	comps, err := s.registry.DepartmentCompetencies(ctx, dept.ID)
	if err != nil {
		return nil, run.reject(err)
	}
	trainers, err := s.registry.DepartmentTrainers(ctx, dept.ID)
	if err != nil {
		return nil, run.reject(err)
	}
	if len(years) == 0 || len(comps) == 0 {
		return nil, run.reject(appErrors.Clone(appErrors.ErrValidation, "the department has no training year or competency to schedule"))
	}

	var days []time.Time
	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if isWeekend(d) {
			continue
		}
		days = append(days, d)
		dates = append(dates, formatDate(d))
	}
	if len(days) == 0 {
		return nil, run.reject(appErrors.Clone(appErrors.ErrValidation, "the generation period contains no weekday"))
	}

	compIDs := make([]int64, 0, len(comps))
	byTrainer := make(map[int64][]models.CompetencyDetail)
	q := models.OccupancyQuery{DateFrom: dates[0], DateTo: dates[len(dates)-1]}
	for _, c := range comps {
		compIDs = append(compIDs, c.ID)
		if c.TrainerID != nil {
			byTrainer[*c.TrainerID] = append(byTrainer[*c.TrainerID], c)
		}
		if c.RoomID != nil {
			q.RoomIDs = append(q.RoomIDs, *c.RoomID)
		}
	}
	for _, y := range years {
		q.YearIDs = append(q.YearIDs, y.ID)
	}
	for _, t := range trainers {
		q.TrainerIDs = append(q.TrainerIDs, t.ID)
	}
	q.RoomIDs = uniqueIDs(q.RoomIDs)

	var slots []departmentSlot
	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.sessions.LockDates(ctx, tx, dates); err != nil {
			return internalError(err, "failed to lock generation dates")
		}

		run.advance(RunCheckingConflicts)
		hours, _, err := s.quotas.HoursByCompetency(ctx, tx, compIDs)
		if err != nil {
			return err
		}
		occ, err := s.conflicts.Snapshot(ctx, tx, q)
		if err != nil {
			return err
		}
		lookback := formatDate(from.AddDate(0, 0, -rotationWindowDays))
		windows, err := s.sessions.ListCompetencyWindows(ctx, tx, compIDs, lookback, dates[len(dates)-1])
		if err != nil {
			return internalError(err, "failed to load competency history")
		}

		state := &departmentState{occ: occ, remaining: make(map[int64]float64, len(comps)), history: make(map[int64][]string)}
		for _, c := range comps {
			state.remaining[c.ID] = hoursRemaining(c.HourlyQuota, hours[c.ID])
		}
		for _, w := range windows {
			state.history[w.CompetencyID] = append(state.history[w.CompetencyID], w.DateStart)
		}

		for _, day := range days {
			slots = append(slots, state.fillDay(day, years, trainers, byTrainer)...)
		}
		if len(slots) == 0 {
			return appErrors.Clone(appErrors.ErrScheduleConflict, "no block could be filled for the department")
		}

		run.advance(RunPersisting)
		for i := range slots {
			slot := &slots[i]
			session := &models.Session{
				TrainingYearID: slot.yearID,
				DateStart:      slot.date,
				DateEnd:        slot.date,
				TimeStart:      formatClock(slot.block.start),
				TimeEnd:        formatClock(slot.block.end),
			}
			if err := s.sessions.Create(ctx, tx, session); err != nil {
				return internalError(err, "failed to persist generated session")
			}
			ids := make([]int64, 0, len(slot.competencies))
			for _, c := range slot.competencies {
				ids = append(ids, c.ID)
			}
			if err := s.sessions.AttachCompetencies(ctx, tx, session.ID, ids); err != nil {
				return internalError(err, "failed to link generated session")
			}
			slot.sessionID = session.ID
		}

		summary := map[string]any{"run_id": run.id, "strategy": StrategyDepartment, "departement_id": dept.ID, "created": len(slots), "date_debut": req.DateStart, "date_fin": req.DateEnd}
		for _, y := range years {
			if err := writeAudit(ctx, s.audit, tx, caller, models.AuditActionGenerate, models.AuditResourceYear, y.ID, nil, summary, meta); err != nil {
				return internalError(err, "failed to record generation audit")
			}
		}
		return nil
	})
	if err != nil {
		return nil, run.reject(err)
	}

	s.quotas.Invalidate(ctx, compIDs)
	s.metrics.RecordSessionsCreated(StrategyDepartment, len(slots))
	s.metrics.ObserveGeneration(StrategyDepartment, time.Since(started))
	run.finish(len(slots))

	return &dto.PlanResponse{
		RunID:     run.id,
		Strategy:  StrategyDepartment,
		State:     string(run.state),
		Created:   len(slots),
		Planning:  departmentPlanning(slots),
		DateStart: req.DateStart,
		DateEnd:   req.DateEnd,
	}, nil
}

// fillDay assigns the blocks of one day, year by year.
func (st *departmentState) fillDay(day time.Time, years []models.TrainingYear, trainers []models.Trainer, byTrainer map[int64][]models.CompetencyDetail) []departmentSlot {
	date := formatDate(day)
	var out []departmentSlot
	for _, block := range departmentBlocks {
		for _, year := range years {
			if st.occ.IsBusy(models.ConflictYear, year.ID, date, date, block.start, block.end) {
				continue
			}
			var picked []models.CompetencyDetail
			for _, trainer := range trainers {
				if len(picked) >= maxCompetenciesPerBlock {
					break
				}
				if st.occ.IsBusy(models.ConflictTrainer, trainer.ID, date, date, block.start, block.end) {
					continue
				}
				if c, ok := st.choose(byTrainer[trainer.ID], day, block, picked); ok {
					picked = append(picked, c)
				}
			}
			if len(picked) == 0 {
				continue
			}

			st.claims--
			p := SlotProposal{TrainingYearID: year.ID, DateStart: date, DateEnd: date, Start: block.start, End: block.end}
			for _, c := range picked {
				p.TrainerIDs = append(p.TrainerIDs, *c.TrainerID)
				if c.RoomID != nil {
					p.RoomIDs = append(p.RoomIDs, *c.RoomID)
				}
				st.remaining[c.ID] = hoursRemaining(st.remaining[c.ID], float64(block.end-block.start)/60)
				st.history[c.ID] = append(st.history[c.ID], date)
			}
			st.occ.Claim(p, st.claims)
			out = append(out, departmentSlot{yearID: year.ID, date: date, block: block, competencies: picked})
		}
	}
	return out
}

// choose picks the trainer's competency with quota left and a free room that
// was taught the fewest times in the trailing week, lowest id on ties.
func (st *departmentState) choose(candidates []models.CompetencyDetail, day time.Time, block departmentBlock, taken []models.CompetencyDetail) (models.CompetencyDetail, bool) {
	date := formatDate(day)
	since := formatDate(day.AddDate(0, 0, -rotationWindowDays))
	best := models.CompetencyDetail{}
	bestCount := -1
	for _, c := range candidates {
		if st.remaining[c.ID] <= 0 || c.TrainerID == nil {
			continue
		}
		if containsCompetency(taken, c.ID) {
			continue
		}
		if c.RoomID != nil {
			if st.occ.IsBusy(models.ConflictRoom, *c.RoomID, date, date, block.start, block.end) || roomTaken(taken, *c.RoomID) {
				continue
			}
		}
		count := 0
		for _, d := range st.history[c.ID] {
			if d >= since && d < date {
				count++
			}
		}
		if bestCount < 0 || count < bestCount || (count == bestCount && c.ID < best.ID) {
			best, bestCount = c, count
		}
	}
	return best, bestCount >= 0
}

func containsCompetency(items []models.CompetencyDetail, id int64) bool {
	for _, c := range items {
		if c.ID == id {
			return true
		}
	}
	return false
}

func roomTaken(items []models.CompetencyDetail, roomID int64) bool {
	for _, c := range items {
		if c.RoomID != nil && *c.RoomID == roomID {
			return true
		}
	}
	return false
}

func departmentPlanning(slots []departmentSlot) []dto.PlannedSession {
	ordered := make([]departmentSlot, len(slots))
	copy(ordered, slots)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].date != ordered[j].date {
			return ordered[i].date < ordered[j].date
		}
		return ordered[i].block.start < ordered[j].block.start
	})
	out := make([]dto.PlannedSession, 0, len(ordered))
	for _, slot := range ordered {
		day, _ := parseDate(slot.date)
		ps := dto.PlannedSession{
			SessionID:      slot.sessionID,
			TrainingYearID: slot.yearID,
			Date:           slot.date,
			Weekday:        weekdayName(day),
			TimeStart:      formatClock(slot.block.start),
			TimeEnd:        formatClock(slot.block.end),
		}
		for _, c := range slot.competencies {
			ps.CompetencyIDs = append(ps.CompetencyIDs, c.ID)
			if c.TrainerID != nil {
				ps.TrainerIDs = append(ps.TrainerIDs, *c.TrainerID)
			}
			if c.RoomID != nil {
				ps.RoomIDs = append(ps.RoomIDs, *c.RoomID)
			}
		}
		out = append(out, ps)
	}
	return out
}
