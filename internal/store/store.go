// Package store defines where backtest results are kept. SQLite (pkg/db) is
// the default; PostgreSQL can replace it and Redis can front either one as a
// read-through cache.
package store

import (
	"context"

	"backtest-core/pkg/db"
)

// RunStore persists finished runs.
type RunStore interface {
	// SaveRun stores a run with its trades and order events.
	SaveRun(ctx context.Context, rd db.RunDetail) error

	// GetRun loads one run. Missing runs return an error wrapping db.ErrNotFound.
	GetRun(ctx context.Context, id string) (*db.RunDetail, error)

	// ListRuns returns run headers, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]db.Run, error)
}

var (
	_ RunStore = (*db.Database)(nil)
	_ RunStore = (*MemoryStore)(nil)
	_ RunStore = (*PostgresStore)(nil)
	_ RunStore = (*CachedStore)(nil)
)
