package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"backtest-core/pkg/db"
)

// MemoryStore keeps runs in a map. Used for tests and when no database is
// configured.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]db.RunDetail
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]db.RunDetail)}
}

func (s *MemoryStore) SaveRun(_ context.Context, rd db.RunDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[rd.Run.ID]; ok {
		return fmt.Errorf("run %s already exists", rd.Run.ID)
	}
	s.runs[rd.Run.ID] = clone(rd)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (*db.RunDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rd, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, db.ErrNotFound)
	}
	out := clone(rd)
	return &out, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]db.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := make([]db.Run, 0, len(s.runs))
	for _, rd := range s.runs {
		runs = append(runs, rd.Run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func clone(rd db.RunDetail) db.RunDetail {
	out := db.RunDetail{Run: rd.Run}
	out.Trades = append([]db.Trade{}, rd.Trades...)
	out.Events = append([]db.OrderEvent{}, rd.Events...)
	return out
}
