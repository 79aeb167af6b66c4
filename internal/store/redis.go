package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"backtest-core/pkg/db"
)

// CachedStore wraps a primary RunStore with a Redis read-through cache.
// Stored runs never change, so a cached run is valid until its TTL expires.
// The run list is cached briefly and dropped on every save.
type CachedStore struct {
	primary RunStore
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary RunStore, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{primary: primary, rdb: rdb, ttl: ttl}
}

func (s *CachedStore) SaveRun(ctx context.Context, rd db.RunDetail) error {
	if err := s.primary.SaveRun(ctx, rd); err != nil {
		return err
	}
	s.cacheRun(ctx, &rd)
	s.rdb.Del(ctx, listKey)
	return nil
}

func (s *CachedStore) GetRun(ctx context.Context, id string) (*db.RunDetail, error) {
	data, err := s.rdb.Get(ctx, runKey(id)).Bytes()
	if err == nil {
		var rd db.RunDetail
		if json.Unmarshal(data, &rd) == nil {
			return &rd, nil
		}
	}

	rd, err := s.primary.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheRun(ctx, rd)
	return rd, nil
}

func (s *CachedStore) ListRuns(ctx context.Context, limit int) ([]db.Run, error) {
	field := fmt.Sprint(limit)
	data, err := s.rdb.HGet(ctx, listKey, field).Bytes()
	if err == nil {
		var runs []db.Run
		if json.Unmarshal(data, &runs) == nil {
			return runs, nil
		}
	}

	runs, err := s.primary.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(runs); err == nil {
		pipe := s.rdb.TxPipeline()
		pipe.HSet(ctx, listKey, field, data)
		pipe.Expire(ctx, listKey, s.ttl)
		pipe.Exec(ctx)
	}
	return runs, nil
}

func (s *CachedStore) cacheRun(ctx context.Context, rd *db.RunDetail) {
	if data, err := json.Marshal(rd); err == nil {
		s.rdb.Set(ctx, runKey(rd.Run.ID), data, s.ttl)
	}
}

const listKey = "backtest:runs"

func runKey(id string) string { return fmt.Sprintf("backtest:run:%s", id) }
