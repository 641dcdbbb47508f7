package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-api/internal/models"
	appErrors "github.com/noah-isme/edt-api/pkg/errors"
	"github.com/noah-isme/edt-api/pkg/jobs"
)

// JobQuotaInvalidate drops cached quota snapshots after a committed write.
const JobQuotaInvalidate = "quota.invalidate"

type quotaWindowReader interface {
	ListCompetencyWindows(ctx context.Context, exec sqlx.QueryerContext, competencyIDs []int64, from, to string) ([]models.CompetencyWindow, error)
}

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

// QuotaService derives scheduled hours per competency from stored sessions.
type QuotaService struct {
	windows  quotaWindowReader
	registry *RegistryService
	cache    *QuotaCache
	queue    jobEnqueuer
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewQuotaService builds a QuotaService. cache and queue may be nil.
func NewQuotaService(windows quotaWindowReader, registry *RegistryService, cache *QuotaCache, metrics *MetricsService, logger *zap.Logger) *QuotaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuotaService{windows: windows, registry: registry, cache: cache, metrics: metrics, logger: logger}
}

// SetQueue routes cache invalidation through the background queue.
func (s *QuotaService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// HoursByCompetency sums the scheduled hours and session count of each
// competency. A nil exec reads outside any transaction.
func (s *QuotaService) HoursByCompetency(ctx context.Context, exec sqlx.QueryerContext, ids []int64) (map[int64]float64, map[int64]int, error) {
	hours := make(map[int64]float64, len(ids))
	counts := make(map[int64]int, len(ids))
	if len(ids) == 0 {
		return hours, counts, nil
	}
	windows, err := s.windows.ListCompetencyWindows(ctx, exec, uniqueIDs(ids), "", "")
	if err != nil {
		return nil, nil, internalError(err, "failed to load scheduled hours")
	}
	for _, w := range windows {
		d := durationHours(w.TimeStart, w.TimeEnd)
		if d <= 0 {
			continue
		}
		hours[w.CompetencyID] += d
		counts[w.CompetencyID]++
	}
	for id, h := range hours {
		hours[id] = round2(h)
	}
	return hours, counts, nil
}

// HoursScheduled returns the scheduled hours of one competency.
func (s *QuotaService) HoursScheduled(ctx context.Context, competencyID int64) (float64, error) {
	hours, _, err := s.HoursByCompetency(ctx, nil, []int64{competencyID})
	if err != nil {
		return 0, err
	}
	return hours[competencyID], nil
}

func hoursRemaining(quota, scheduled float64) float64 {
	return math.Max(0, round2(quota-scheduled))
}

func buildQuotaStatus(c models.CompetencyDetail, scheduled float64, count int) models.QuotaStatus {
	remaining := hoursRemaining(c.HourlyQuota, scheduled)
	status := models.QuotaStatus{
		CompetencyID:   c.ID,
		Name:           c.Name,
		Code:           c.Code,
		TradeID:        c.TradeID,
		TrainerID:      c.TrainerID,
		HourlyQuota:    c.HourlyQuota,
		HoursScheduled: scheduled,
		HoursRemaining: remaining,
		Status:         models.QuotaStatusInProgress,
		SessionCount:   count,
	}
	if remaining <= 0 {
		status.Status = models.QuotaStatusComplete
	}
	if c.HourlyQuota > 0 {
		status.PercentUsed = round1(scheduled / c.HourlyQuota * 100)
	}
	return status
}

// Statuses returns the quota snapshot of each competency, in input order.
func (s *QuotaService) Statuses(ctx context.Context, competencies []models.CompetencyDetail) ([]models.QuotaStatus, error) {
	ids := make([]int64, len(competencies))
	for i, c := range competencies {
		ids[i] = c.ID
	}
	cached := s.cache.Lookup(ctx, uniqueIDs(ids))

	var missing []int64
	for _, id := range uniqueIDs(ids) {
		if _, ok := cached[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		hours, counts, err := s.HoursByCompetency(ctx, nil, missing)
		if err != nil {
			return nil, err
		}
		fresh := make([]models.QuotaStatus, 0, len(missing))
		for _, c := range competencies {
			if _, ok := cached[c.ID]; ok {
				continue
			}
			status := buildQuotaStatus(c, hours[c.ID], counts[c.ID])
			cached[c.ID] = status
			fresh = append(fresh, status)
		}
		s.cache.Store(ctx, fresh)
	}

	out := make([]models.QuotaStatus, len(competencies))
	for i, c := range competencies {
		out[i] = cached[c.ID]
	}
	return out, nil
}

// StatusesFor authorizes the caller over the competencies then returns
// their quota snapshot.
func (s *QuotaService) StatusesFor(ctx context.Context, caller models.Caller, ids []int64) ([]models.QuotaStatus, error) {
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one competency id is required")
	}
	comps, err := s.registry.LoadCompetencies(ctx, ids)
	if err != nil {
		return nil, err
	}
	ordered := make([]models.CompetencyDetail, 0, len(comps))
	for _, id := range uniqueIDs(ids) {
		ordered = append(ordered, comps[id])
	}
	if _, err := s.registry.AuthorizeScheduling(ctx, caller, nil, ordered); err != nil {
		return nil, err
	}
	return s.Statuses(ctx, ordered)
}

// CompetenciesWithQuota lists the competencies of a trade that still have
// hours left, largest remainder first.
func (s *QuotaService) CompetenciesWithQuota(ctx context.Context, caller models.Caller, tradeID int64) ([]models.QuotaStatus, error) {
	_, statuses, err := s.tradeStatuses(ctx, caller, tradeID)
	if err != nil {
		return nil, err
	}
	open := make([]models.QuotaStatus, 0, len(statuses))
	for _, st := range statuses {
		if st.HoursRemaining > 0 {
			open = append(open, st)
		}
	}
	sort.SliceStable(open, func(i, j int) bool { return open[i].HoursRemaining > open[j].HoursRemaining })
	return open, nil
}

// TradeStatistics aggregates quota progress over a trade.
func (s *QuotaService) TradeStatistics(ctx context.Context, caller models.Caller, tradeID int64) (*models.TradeStatistics, error) {
	trade, statuses, err := s.tradeStatuses(ctx, caller, tradeID)
	if err != nil {
		return nil, err
	}
	stats := &models.TradeStatistics{TradeID: trade.ID, TradeTitle: trade.Title, CompetencyCount: len(statuses)}
	trainers := make(map[int64]struct{})
	for _, st := range statuses {
		stats.TotalQuota += st.HourlyQuota
		stats.TotalScheduled += st.HoursScheduled
		stats.TotalRemaining += st.HoursRemaining
		stats.ScheduledSessionsN += st.SessionCount
		if st.Status == models.QuotaStatusComplete {
			stats.CompleteCount++
		}
		if st.TrainerID != nil {
			trainers[*st.TrainerID] = struct{}{}
		}
	}
	stats.TotalQuota = round2(stats.TotalQuota)
	stats.TotalScheduled = round2(stats.TotalScheduled)
	stats.TotalRemaining = round2(stats.TotalRemaining)
	stats.DistinctTrainers = len(trainers)
	if stats.TotalQuota > 0 {
		stats.PercentUsed = round1(stats.TotalScheduled / stats.TotalQuota * 100)
	}
	return stats, nil
}

// tradeStatuses hides trades outside the caller's departments behind a 404.
func (s *QuotaService) tradeStatuses(ctx context.Context, caller models.Caller, tradeID int64) (*models.Trade, []models.QuotaStatus, error) {
	trainer, err := s.registry.ResolveCaller(ctx, caller)
	if err != nil {
		return nil, nil, err
	}
	trade, err := s.registry.Trade(ctx, tradeID)
	if err != nil {
		return nil, nil, err
	}
	ok, err := s.registry.IsChiefOf(ctx, trainer.ID, trade.DepartmentID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "trade not found in your departments")
	}
	statuses, err := s.tradeCompetencyStatuses(ctx, tradeID)
	if err != nil {
		return nil, nil, err
	}
	return trade, statuses, nil
}

// TradeReport returns quota snapshots for every competency of a trade
// without caller scoping. It serves operator tooling.
func (s *QuotaService) TradeReport(ctx context.Context, tradeID int64) (*models.Trade, []models.QuotaStatus, error) {
	trade, err := s.registry.Trade(ctx, tradeID)
	if err != nil {
		return nil, nil, err
	}
	statuses, err := s.tradeCompetencyStatuses(ctx, tradeID)
	if err != nil {
		return nil, nil, err
	}
	return trade, statuses, nil
}

func (s *QuotaService) tradeCompetencyStatuses(ctx context.Context, tradeID int64) ([]models.QuotaStatus, error) {
	comps, err := s.registry.TradeCompetencies(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	return s.Statuses(ctx, comps)
}

// Flush drops cached snapshots synchronously.
func (s *QuotaService) Flush(ctx context.Context, ids []int64) error {
	return s.cache.Drop(ctx, uniqueIDs(ids))
}

// FlushAll drops every cached snapshot and returns how many were removed.
func (s *QuotaService) FlushAll(ctx context.Context) (int, error) {
	return s.cache.DropAll(ctx)
}

// Invalidate drops cached snapshots of the competencies, in the background
// when a queue is attached.
func (s *QuotaService) Invalidate(ctx context.Context, ids []int64) {
	if !s.cache.Enabled() || len(ids) == 0 {
		return
	}
	ids = uniqueIDs(ids)
	if s.queue != nil {
		err := s.queue.TryEnqueue(jobs.Job{Type: JobQuotaInvalidate, Payload: ids})
		if err == nil {
			return
		}
		s.logger.Warn("quota invalidation not queued, deleting inline", zap.Error(err))
	}
	if err := s.cache.Drop(ctx, ids); err != nil {
		s.logger.Warn("quota cache invalidation failed", zap.Int64s("competency_ids", ids), zap.Error(err))
	}
}

// HandleJob processes quota jobs from the background queue.
func (s *QuotaService) HandleJob(ctx context.Context, job jobs.Job) error {
	if job.Type != JobQuotaInvalidate {
		return fmt.Errorf("unsupported job type %q", job.Type)
	}
	ids, ok := job.Payload.([]int64)
	if !ok {
		err := fmt.Errorf("invalid payload %T for %s", job.Payload, job.Type)
		s.metrics.RecordJob(job.Type, err)
		return err
	}
	err := s.cache.Drop(ctx, ids)
	s.metrics.RecordJob(job.Type, err)
	return err
}
