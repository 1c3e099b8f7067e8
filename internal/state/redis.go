package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gridline/bot-engine/internal/model"
)

// CachedRepository wraps a primary Repository (PostgreSQL) with a Redis
// read-through cache. Saves write through to the primary and refresh the
// cache; loads check Redis first then fall back to the primary.
type CachedRepository struct {
	primary Repository
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedRepository creates a cached wrapper around a primary repository.
func NewCachedRepository(primary Repository, rdb *redis.Client, ttl time.Duration) *CachedRepository {
	return &CachedRepository{primary: primary, rdb: rdb, ttl: ttl}
}

func (r *CachedRepository) Load(ctx context.Context, botID string) (*model.Snapshot, error) {
	// Try cache.
	data, err := r.rdb.Get(ctx, snapshotKey(botID)).Bytes()
	if err == nil {
		if snap, derr := DecodeSnapshot(data); derr == nil {
			return snap, nil
		}
	}

	// Cache miss: read from primary.
	snap, err := r.primary.Load(ctx, botID)
	if err != nil || snap == nil {
		return snap, err
	}

	r.cacheSnapshot(ctx, botID, snap)
	return snap, nil
}

func (r *CachedRepository) Save(ctx context.Context, botID string, snap *model.Snapshot) error {
	if err := r.primary.Save(ctx, botID, snap); err != nil {
		return err
	}
	r.cacheSnapshot(ctx, botID, snap)
	return nil
}

func (r *CachedRepository) cacheSnapshot(ctx context.Context, botID string, snap *model.Snapshot) {
	if data, err := json.Marshal(snap); err == nil {
		r.rdb.Set(ctx, snapshotKey(botID), data, r.ttl)
	}
}

func snapshotKey(botID string) string { return fmt.Sprintf("bot:snapshot:%s", botID) }
