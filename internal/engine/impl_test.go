package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"backtest-core/internal/market"
	"backtest-core/internal/store"
	"backtest-core/internal/strategy"
	"backtest-core/pkg/db"
	"backtest-core/pkg/logging"
)

const serviceConfig = `
strategies:
  - id: bb-strict
    name: Bollinger strict
    type: bollinger_rsi_macd_strict
    parameters:
      maperiod: 15
  - id: trend
    name: Trend
    type: ma_cross
    parameters:
      short_period: 10
      long_period: 30
windows:
  - name: first-half
    from: "2000-01-01"
    to: "2000-06-30"
  - name: second-half
    from: "2000-07-01"
    to: "2000-12-31"
sweeps:
  - strategy: trend
    grid:
      short_period: [5, 10]
      long_period: [30, 40]
`

type memBars map[string][]market.Bar

func (m memBars) ReadBars(_ context.Context, dataset string, from, to time.Time) ([]market.Bar, error) {
	return market.Collect(market.NewSliceFeed(m[dataset], from, to))
}

func newTestService(t *testing.T) (*Impl, *store.MemoryStore) {
	t.Helper()
	cfg, err := strategy.ParseConfig([]byte(serviceConfig))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	st := store.NewMemoryStore()
	bars := market.MockSeries{Seed: 11, Start: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), Step: 0.03}.Generate(366)
	svc := NewImpl(Config{
		Strategies: cfg,
		Bars:       memBars{"mock": bars},
		Store:      st,
		Logger:     logging.Discard(),
		Workers:    2,
	})
	return svc, st
}

func TestServiceRunBacktestPersists(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rep, err := svc.RunBacktest(ctx, BacktestRequest{
		StrategyRef: StrategyRef{StrategyID: "bb-strict", Params: map[string]any{"devfactor": 2.5}},
		Source:      Source{Dataset: "mock"},
	})
	if err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}
	if rep.Params.MAPeriod != 15 || rep.Params.DevFactor != 2.5 || rep.Params.RSIOversold != 30 {
		t.Fatalf("resolved params=%+v", rep.Params)
	}
	if rep.StrategyID != "bb-strict" || rep.Bars != 366 {
		t.Fatalf("report strategy=%s bars=%d", rep.StrategyID, rep.Bars)
	}

	stored, err := svc.GetRun(ctx, rep.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Run.FinalValue != rep.FinalValue || len(stored.Events) != len(rep.OrderEvents) {
		t.Fatalf("stored=%+v", stored.Run)
	}
	runs, err := svc.ListRuns(ctx, 10)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns=%v err=%v", runs, err)
	}
}

func TestServiceRunsByKindWithInlineBars(t *testing.T) {
	svc, _ := newTestService(t)
	bars := market.MockSeries{Seed: 1}.Generate(120)
	rep, err := svc.RunBacktest(context.Background(), BacktestRequest{
		StrategyRef: StrategyRef{Kind: strategy.KindWMAOBV, Params: map[string]any{"short_period": 5, "long_period": 20}},
		Source:      Source{Bars: bars},
	})
	if err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}
	if rep.StrategyID != strategy.KindWMAOBV || rep.Params.FixedSize != 100 {
		t.Fatalf("report=%+v", rep.Params)
	}
}

func TestServiceWindowsAndSweepUseConfig(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	wins, err := svc.RunWindows(ctx, WindowsRequest{
		StrategyRef: StrategyRef{StrategyID: "bb-strict"},
		Source:      Source{Dataset: "mock"},
	})
	if err != nil {
		t.Fatalf("RunWindows: %v", err)
	}
	if len(wins) != 2 || wins[0].Window.Name != "first-half" || wins[0].Bars != 182 {
		t.Fatalf("windows=%+v", wins)
	}

	res, err := svc.Sweep(ctx, SweepRequest{
		StrategyRef: StrategyRef{StrategyID: "trend"},
		Source:      Source{Dataset: "mock"},
	})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(res.Runs) != 4 {
		t.Fatalf("sweep runs=%d, expected 4", len(res.Runs))
	}
	best, err := st.GetRun(ctx, res.BestReport.RunID)
	if err != nil {
		t.Fatalf("best run not stored: %v", err)
	}
	if best.Run.SweepID != res.ID {
		t.Fatalf("sweep id=%q, expected %q", best.Run.SweepID, res.ID)
	}
	runs, _ := st.ListRuns(ctx, 0)
	if len(runs) != 3 {
		t.Fatalf("stored runs=%d, expected 3", len(runs))
	}
}

func TestServiceErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  BacktestRequest
		want error
	}{
		{"unknown strategy", BacktestRequest{StrategyRef: StrategyRef{StrategyID: "nope"}, Source: Source{Dataset: "mock"}}, ErrInvalidParams},
		{"bad override", BacktestRequest{StrategyRef: StrategyRef{StrategyID: "trend", Params: map[string]any{"fraction": 2}}, Source: Source{Dataset: "mock"}}, ErrInvalidParams},
		{"no source", BacktestRequest{StrategyRef: StrategyRef{StrategyID: "trend"}}, ErrNoBars},
		{"empty dataset", BacktestRequest{StrategyRef: StrategyRef{StrategyID: "trend"}, Source: Source{Dataset: "other"}}, ErrNoBars},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.RunBacktest(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("err=%v, expected %v", err, tt.want)
			}
		})
	}

	if _, err := svc.GetRun(ctx, "missing"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("GetRun err=%v", err)
	}
}

func TestServiceListStrategies(t *testing.T) {
	svc, _ := newTestService(t)
	list, err := svc.ListStrategies(context.Background())
	if err != nil {
		t.Fatalf("ListStrategies: %v", err)
	}
	// Two configured entries plus the four built-in kinds.
	if len(list) != 6 || list[0].ID != "bb-strict" || list[0].Params.MAPeriod != 15 {
		t.Fatalf("strategies=%+v", list)
	}
	if st := svc.GetSystemStatus(context.Background()); st.Workers != 2 {
		t.Fatalf("status=%+v", st)
	}
}

type countingBars struct {
	memBars
	reads atomic.Int32
}

func (c *countingBars) ReadBars(ctx context.Context, dataset string, from, to time.Time) ([]market.Bar, error) {
	c.reads.Add(1)
	return c.memBars.ReadBars(ctx, dataset, from, to)
}

func TestServiceCachesDatasetReads(t *testing.T) {
	bars := market.MockSeries{Seed: 3, Start: time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), Step: 0.02}.Generate(120)
	src := &countingBars{memBars: memBars{"mock": bars}}
	svc := NewImpl(Config{
		Bars:        src,
		Store:       store.NewMemoryStore(),
		Logger:      logging.Discard(),
		BarCacheTTL: time.Minute,
	})
	ctx := context.Background()
	req := BacktestRequest{StrategyRef: StrategyRef{Kind: strategy.KindBollingerRSIMACD}, Source: Source{Dataset: "mock"}}
	for i := 0; i < 3; i++ {
		if _, err := svc.RunBacktest(ctx, req); err != nil {
			t.Fatalf("RunBacktest #%d: %v", i, err)
		}
	}
	if n := src.reads.Load(); n != 1 {
		t.Fatalf("reads=%d, expected 1", n)
	}
}
