package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-api/internal/dto"
	"github.com/noah-isme/edt-api/internal/models"
)

type busyWindowReader interface {
	ListBusyWindows(ctx context.Context, exec sqlx.QueryerContext, q models.OccupancyQuery) ([]models.BusyWindow, error)
}

// SlotProposal is a candidate window together with the resources it uses.
// Start and End are minutes since midnight.
type SlotProposal struct {
	TrainingYearID   int64
	DateStart        string
	DateEnd          string
	Start            int
	End              int
	TrainerIDs       []int64
	RoomIDs          []int64
	ExcludeSessionID *int64
}

func (p SlotProposal) query() models.OccupancyQuery {
	q := models.OccupancyQuery{
		DateFrom:         p.DateStart,
		DateTo:           p.DateEnd,
		TrainerIDs:       uniqueIDs(p.TrainerIDs),
		RoomIDs:          uniqueIDs(p.RoomIDs),
		ExcludeSessionID: p.ExcludeSessionID,
	}
	if p.TrainingYearID != 0 {
		q.YearIDs = []int64{p.TrainingYearID}
	}
	return q
}

type occupancyEntry struct {
	sessionID int64
	dateStart string
	dateEnd   string
	start     int
	end       int
}

// Occupancy is an in-memory view of busy windows per resource. Generation
// runs seed it from the database once and then claim slots as they place
// them.
type Occupancy struct {
	entries map[string]map[int64][]occupancyEntry
}

func newOccupancy() *Occupancy {
	return &Occupancy{entries: map[string]map[int64][]occupancyEntry{
		models.ConflictYear:    {},
		models.ConflictTrainer: {},
		models.ConflictRoom:    {},
	}}
}

func (o *Occupancy) add(dimension string, id int64, e occupancyEntry) {
	for _, existing := range o.entries[dimension][id] {
		if existing == e {
			return
		}
	}
	o.entries[dimension][id] = append(o.entries[dimension][id], e)
}

// Load records persisted windows. Rows with unparsable times are skipped.
func (o *Occupancy) Load(windows []models.BusyWindow) {
	for _, w := range windows {
		start, err := parseClock(w.TimeStart)
		if err != nil {
			continue
		}
		end, err := parseClock(w.TimeEnd)
		if err != nil {
			continue
		}
		e := occupancyEntry{sessionID: w.SessionID, dateStart: w.DateStart, dateEnd: w.DateEnd, start: start, end: end}
		o.add(models.ConflictYear, w.TrainingYearID, e)
		if w.TrainerID != nil {
			o.add(models.ConflictTrainer, *w.TrainerID, e)
		}
		if w.RoomID != nil {
			o.add(models.ConflictRoom, *w.RoomID, e)
		}
	}
}

// Claim marks every resource of the proposal busy for its window.
func (o *Occupancy) Claim(p SlotProposal, sessionID int64) {
	e := occupancyEntry{sessionID: sessionID, dateStart: p.DateStart, dateEnd: p.DateEnd, start: p.Start, end: p.End}
	if p.TrainingYearID != 0 {
		o.add(models.ConflictYear, p.TrainingYearID, e)
	}
	for _, id := range p.TrainerIDs {
		o.add(models.ConflictTrainer, id, e)
	}
	for _, id := range p.RoomIDs {
		o.add(models.ConflictRoom, id, e)
	}
}

// IsBusy reports whether the resource has a window overlapping the given one.
func (o *Occupancy) IsBusy(dimension string, id int64, dateStart, dateEnd string, start, end int) bool {
	for _, e := range o.entries[dimension][id] {
		if datesIntersect(e.dateStart, e.dateEnd, dateStart, dateEnd) && overlaps(e.start, e.end, start, end) {
			return true
		}
	}
	return false
}

// Conflicts lists every collision of the proposal: year first, then
// trainers, then rooms.
func (o *Occupancy) Conflicts(p SlotProposal) []models.SessionConflict {
	var out []models.SessionConflict
	seen := make(map[string]struct{})
	collect := func(dimension string, id int64) {
		for _, e := range o.entries[dimension][id] {
			if p.ExcludeSessionID != nil && e.sessionID == *p.ExcludeSessionID {
				continue
			}
			if !datesIntersect(e.dateStart, e.dateEnd, p.DateStart, p.DateEnd) || !overlaps(e.start, e.end, p.Start, p.End) {
				continue
			}
			key := fmt.Sprintf("%s:%d:%d", dimension, id, e.sessionID)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, models.SessionConflict{
				Dimension:  dimension,
				ResourceID: id,
				SessionID:  e.sessionID,
				Date:       e.dateStart,
				TimeStart:  formatClock(e.start),
				TimeEnd:    formatClock(e.end),
				Message:    conflictMessage(dimension, id, e),
			})
		}
	}
	if p.TrainingYearID != 0 {
		collect(models.ConflictYear, p.TrainingYearID)
	}
	for _, id := range uniqueIDs(p.TrainerIDs) {
		collect(models.ConflictTrainer, id)
	}
	for _, id := range uniqueIDs(p.RoomIDs) {
		collect(models.ConflictRoom, id)
	}
	return out
}

func conflictMessage(dimension string, id int64, e occupancyEntry) string {
	var subject string
	switch dimension {
	case models.ConflictYear:
		subject = fmt.Sprintf("training year %d", id)
	case models.ConflictTrainer:
		subject = fmt.Sprintf("trainer %d", id)
	default:
		subject = fmt.Sprintf("room %d", id)
	}
	return fmt.Sprintf("%s is already booked by session %d on %s from %s to %s", subject, e.sessionID, e.dateStart, formatClock(e.start), formatClock(e.end))
}

// policyConflicts reports opening-hours and lunch-break violations.
func policyConflicts(date string, start, end int) []models.SessionConflict {
	outside, lunch := checkOpeningPolicy(start, end)
	var out []models.SessionConflict
	if outside {
		out = append(out, models.SessionConflict{
			Dimension: models.ConflictOpeningHours,
			Date:      date,
			TimeStart: formatClock(start),
			TimeEnd:   formatClock(end),
			Message:   "sessions must take place between 08:00 and 17:00",
		})
	}
	if lunch {
		out = append(out, models.SessionConflict{
			Dimension: models.ConflictLunchBreak,
			Date:      date,
			TimeStart: formatClock(start),
			TimeEnd:   formatClock(end),
			Message:   "sessions cannot overlap the 13:00-14:00 lunch break",
		})
	}
	return out
}

// ConflictService detects double-booking of years, trainers and rooms.
type ConflictService struct {
	sessions busyWindowReader
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewConflictService builds a ConflictService.
func NewConflictService(sessions busyWindowReader, metrics *MetricsService, logger *zap.Logger) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{sessions: sessions, metrics: metrics, logger: logger}
}

// Snapshot loads the persisted occupancy of the listed resources.
func (s *ConflictService) Snapshot(ctx context.Context, exec sqlx.QueryerContext, q models.OccupancyQuery) (*Occupancy, error) {
	occ := newOccupancy()
	if len(q.YearIDs) == 0 && len(q.TrainerIDs) == 0 && len(q.RoomIDs) == 0 {
		return occ, nil
	}
	windows, err := s.sessions.ListBusyWindows(ctx, exec, q)
	if err != nil {
		return nil, internalError(err, "failed to load occupied slots")
	}
	occ.Load(windows)
	return occ, nil
}

// Check returns every persisted collision of the proposal.
func (s *ConflictService) Check(ctx context.Context, exec sqlx.QueryerContext, p SlotProposal) ([]models.SessionConflict, error) {
	occ, err := s.Snapshot(ctx, exec, p.query())
	if err != nil {
		return nil, err
	}
	conflicts := occ.Conflicts(p)
	for _, c := range conflicts {
		s.metrics.RecordConflict(c.Dimension)
	}
	if len(conflicts) > 0 {
		s.logger.Debug("slot conflicts detected", zap.Int64("training_year_id", p.TrainingYearID), zap.String("date", p.DateStart), zap.Int("count", len(conflicts)))
	}
	return conflicts, nil
}

// HasConflict checks a single resource. dimension is one of YEAR, TRAINER
// or ROOM.
func (s *ConflictService) HasConflict(ctx context.Context, dimension string, resourceID int64, date, timeStart, timeEnd string, excludeSessionID *int64) (bool, error) {
	start, err := parseClock(timeStart)
	if err != nil {
		return false, err
	}
	end, err := parseClock(timeEnd)
	if err != nil {
		return false, err
	}
	p := SlotProposal{DateStart: date, DateEnd: date, Start: start, End: end, ExcludeSessionID: excludeSessionID}
	switch dimension {
	case models.ConflictYear:
		p.TrainingYearID = resourceID
	case models.ConflictTrainer:
		p.TrainerIDs = []int64{resourceID}
	case models.ConflictRoom:
		p.RoomIDs = []int64{resourceID}
	default:
		return false, fmt.Errorf("unknown conflict dimension %q", dimension)
	}
	conflicts, err := s.Check(ctx, nil, p)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}

// DetectPairs finds every pair of sessions sharing a year or a trainer on
// overlapping windows.
func (s *ConflictService) DetectPairs(sessions []models.SessionDetail) []dto.PairConflict {
	ordered := make([]models.SessionDetail, len(sessions))
	copy(ordered, sessions)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	type window struct {
		start, end int
		trainers   map[int64]struct{}
		ok         bool
	}
	windows := make([]window, len(ordered))
	for i, sess := range ordered {
		start, err1 := parseClock(sess.TimeStart)
		end, err2 := parseClock(sess.TimeEnd)
		w := window{start: start, end: end, trainers: map[int64]struct{}{}, ok: err1 == nil && err2 == nil}
		for _, c := range sess.Competencies {
			if c.TrainerID != nil {
				w.trainers[*c.TrainerID] = struct{}{}
			}
		}
		windows[i] = w
	}

	var out []dto.PairConflict
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			a, b := ordered[i], ordered[j]
			wa, wb := windows[i], windows[j]
			if !wa.ok || !wb.ok {
				continue
			}
			if !datesIntersect(a.DateStart, a.DateEnd, b.DateStart, b.DateEnd) || !overlaps(wa.start, wa.end, wb.start, wb.end) {
				continue
			}
			if a.TrainingYearID == b.TrainingYearID {
				out = append(out, dto.PairConflict{
					Type:       dto.PairConflictYear,
					Message:    fmt.Sprintf("training year %d has overlapping sessions %d and %d on %s", a.TrainingYearID, a.ID, b.ID, b.DateStart),
					FirstID:    a.ID,
					SecondID:   b.ID,
					ResourceID: a.TrainingYearID,
				})
			}
			shared := make([]int64, 0)
			for id := range wa.trainers {
				if _, ok := wb.trainers[id]; ok {
					shared = append(shared, id)
				}
			}
			sort.Slice(shared, func(x, y int) bool { return shared[x] < shared[y] })
			for _, id := range shared {
				out = append(out, dto.PairConflict{
					Type:       dto.PairConflictTrainer,
					Message:    fmt.Sprintf("trainer %d teaches overlapping sessions %d and %d on %s", id, a.ID, b.ID, b.DateStart),
					FirstID:    a.ID,
					SecondID:   b.ID,
					ResourceID: id,
				})
			}
		}
	}
	return out
}
