package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edt-api/internal/models"
)

const quotaCacheKeyPrefix = "quota:competency:"

// SnapshotStore persists serialized snapshots by key.
type SnapshotStore interface {
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
	SetMany(ctx context.Context, values map[string][]byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
}

// QuotaCache holds quota snapshots per competency. Store failures degrade to
// misses; a nil or disabled cache misses on every lookup.
type QuotaCache struct {
	store   SnapshotStore
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewQuotaCache builds the cache. ttl defaults to five minutes.
func NewQuotaCache(store SnapshotStore, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *QuotaCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuotaCache{store: store, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled reports whether lookups can hit.
func (c *QuotaCache) Enabled() bool {
	return c != nil && c.enabled && c.store != nil
}

// Lookup returns the cached snapshots among ids.
func (c *QuotaCache) Lookup(ctx context.Context, ids []int64) map[int64]models.QuotaStatus {
	hits := make(map[int64]models.QuotaStatus)
	if !c.Enabled() || len(ids) == 0 {
		return hits
	}
	start := time.Now()
	raw, err := c.store.GetMany(ctx, quotaKeys(ids))
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Warn("quota cache lookup failed", zap.Int64s("competency_ids", ids), zap.Error(err))
		return hits
	}
	for _, id := range ids {
		payload, ok := raw[quotaKey(id)]
		if !ok {
			c.metrics.RecordCacheOperation(false, elapsed)
			continue
		}
		var status models.QuotaStatus
		if err := json.Unmarshal(payload, &status); err != nil {
			c.logger.Warn("discarding unreadable quota snapshot", zap.Int64("competency_id", id), zap.Error(err))
			c.metrics.RecordCacheOperation(false, elapsed)
			continue
		}
		c.metrics.RecordCacheOperation(true, elapsed)
		hits[id] = status
	}
	return hits
}

// Store caches the snapshots.
func (c *QuotaCache) Store(ctx context.Context, statuses []models.QuotaStatus) {
	if !c.Enabled() || len(statuses) == 0 {
		return
	}
	values := make(map[string][]byte, len(statuses))
	for _, st := range statuses {
		payload, err := json.Marshal(st)
		if err != nil {
			continue
		}
		values[quotaKey(st.CompetencyID)] = payload
	}
	start := time.Now()
	err := c.store.SetMany(ctx, values, c.ttl)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("quota cache write failed", zap.Int("snapshots", len(values)), zap.Error(err))
	}
}

// Drop removes the snapshots of ids.
func (c *QuotaCache) Drop(ctx context.Context, ids []int64) error {
	if !c.Enabled() || len(ids) == 0 {
		return nil
	}
	return c.store.Delete(ctx, quotaKeys(ids)...)
}

// DropAll removes every quota snapshot.
func (c *QuotaCache) DropAll(ctx context.Context) (int, error) {
	if !c.Enabled() {
		return 0, nil
	}
	return c.store.DeleteByPrefix(ctx, quotaCacheKeyPrefix)
}

func quotaKey(id int64) string {
	return quotaCacheKeyPrefix + strconv.FormatInt(id, 10)
}

func quotaKeys(ids []int64) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = quotaKey(id)
	}
	return keys
}
