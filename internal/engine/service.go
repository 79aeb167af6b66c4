package engine

import (
	"context"
	"time"

	"backtest-core/internal/market"
	"backtest-core/pkg/db"
)

// Service is what the API layer uses to run and inspect backtests.
type Service interface {
	// Runs
	RunBacktest(ctx context.Context, req BacktestRequest) (*Report, error)
	RunWindows(ctx context.Context, req WindowsRequest) ([]WindowReport, error)
	Sweep(ctx context.Context, req SweepRequest) (*SweepResult, error)

	// Stored results
	GetRun(ctx context.Context, id string) (*db.RunDetail, error)
	ListRuns(ctx context.Context, limit int) ([]db.Run, error)

	// Catalog
	ListStrategies(ctx context.Context) ([]StrategyInfo, error)
	GetSystemStatus(ctx context.Context) *SystemStatus
}

// BarSource loads historical bars by dataset name.
type BarSource interface {
	ReadBars(ctx context.Context, dataset string, from, to time.Time) ([]market.Bar, error)
}

// Source selects the bars of a request: inline bars win over a dataset.
type Source struct {
	Dataset string       `json:"dataset,omitempty"`
	Bars    []market.Bar `json:"bars,omitempty"`
	From    time.Time    `json:"from,omitempty"`
	To      time.Time    `json:"to,omitempty"`
}

// StrategyRef names either a configured strategy or a bare kind, plus
// overrides applied on top of its parameters.
type StrategyRef struct {
	StrategyID string         `json:"strategy_id,omitempty"`
	Kind       string         `json:"kind,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
}

// BacktestRequest runs one strategy over one source.
type BacktestRequest struct {
	StrategyRef
	Source
}

// WindowsRequest runs one strategy over several date windows of a source.
// Without windows, the configured ones are used.
type WindowsRequest struct {
	StrategyRef
	Source
	Windows []Window `json:"windows,omitempty"`
}

// SweepRequest runs a parameter grid. Without a grid, the configured sweep
// for the strategy is used.
type SweepRequest struct {
	StrategyRef
	Source
	Grid Grid `json:"grid,omitempty"`
}

// StrategyInfo describes a runnable strategy.
type StrategyInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Params Params `json:"params"`
}

// SystemStatus reports process metadata.
type SystemStatus struct {
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
	Store     string    `json:"store"`
	Datasets  []string  `json:"datasets,omitempty"`
	Workers   int       `json:"workers"`
}
