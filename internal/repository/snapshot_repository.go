package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 100

// SnapshotRepository keeps serialized snapshots in Redis. A nil client makes
// reads miss and writes no-ops, so callers never branch on Redis being up.
type SnapshotRepository struct {
	client *redis.Client
}

// NewSnapshotRepository wraps a Redis client, which may be nil.
func NewSnapshotRepository(client *redis.Client) *SnapshotRepository {
	return &SnapshotRepository{client: client}
}

// GetMany fetches the keys with a single MGET. Absent keys are left out of
// the result.
func (r *SnapshotRepository) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	found := make(map[string][]byte, len(keys))
	if r.client == nil || len(keys) == 0 {
		return found, nil
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	for i, v := range values {
		switch raw := v.(type) {
		case string:
			found[keys[i]] = []byte(raw)
		case []byte:
			found[keys[i]] = raw
		}
	}
	return found, nil
}

// SetMany writes every value with the same TTL in one pipeline round trip.
func (r *SnapshotRepository) SetMany(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	if r.client == nil || len(values) == 0 {
		return nil
	}
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for k, v := range values {
			p.Set(ctx, k, v, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis pipeline set: %w", err)
	}
	return nil
}

// Delete removes the given keys.
func (r *SnapshotRepository) Delete(ctx context.Context, keys ...string) error {
	if r.client == nil || len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DeleteByPrefix scans for keys under prefix and deletes them in batches,
// returning how many were removed.
func (r *SnapshotRepository) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	if r.client == nil {
		return 0, nil
	}
	removed := 0
	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := r.client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	iter := r.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan %s*: %w", prefix, err)
	}
	return removed, flush()
}
