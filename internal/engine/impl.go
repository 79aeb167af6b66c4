package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"backtest-core/internal/events"
	"backtest-core/internal/market"
	"backtest-core/internal/store"
	"backtest-core/internal/strategy"
	"backtest-core/pkg/cache"
	"backtest-core/pkg/db"
)

// ErrNoBars is returned when a request resolves to an empty bar series.
var ErrNoBars = errors.New("no bars to backtest")

// Impl implements Service by composing the driver with a bar source, a
// result store and the event bus.
type Impl struct {
	registry *strategy.Registry
	configs  *strategy.ConfigFile
	bars     BarSource
	store    store.RunStore
	bus      *events.Bus
	log      *slog.Logger
	workers  int
	defaults func(kind string) Params
	barCache *cache.Sharded[[]market.Bar]

	meta SystemStatus
}

// Config holds the dependencies of an Impl. Only Store is required.
type Config struct {
	Registry    *strategy.Registry
	Strategies  *strategy.ConfigFile
	Bars        BarSource
	Store       store.RunStore
	Bus         *events.Bus
	Logger      *slog.Logger
	Workers     int
	InitialCash float64 // overrides the per-kind default when > 0
	Commission  float64 // overrides the per-kind default when > 0
	Meta        SystemStatus
	BarCacheTTL time.Duration // dataset reads are cached when > 0
}

// NewImpl creates a new service.
func NewImpl(cfg Config) *Impl {
	reg := cfg.Registry
	if reg == nil {
		reg = strategy.DefaultRegistry()
	}
	configs := cfg.Strategies
	if configs == nil {
		configs = &strategy.ConfigFile{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	meta := cfg.Meta
	if meta.StartedAt.IsZero() {
		meta.StartedAt = time.Now()
	}
	meta.Workers = limit(cfg.Workers)
	cash, comm := cfg.InitialCash, cfg.Commission
	var bc *cache.Sharded[[]market.Bar]
	if cfg.BarCacheTTL > 0 {
		bc = cache.NewSharded[[]market.Bar](cfg.BarCacheTTL)
	}
	return &Impl{
		barCache: bc,
		registry: reg,
		configs:  configs,
		bars:     cfg.Bars,
		store:    cfg.Store,
		bus:      cfg.Bus,
		log:      log,
		workers:  limit(cfg.Workers),
		meta:     meta,
		defaults: func(kind string) Params {
			p := strategy.DefaultParams(kind)
			if cash > 0 {
				p.InitialCash = cash
			}
			if comm > 0 {
				p.Commission = comm
			}
			return p
		},
	}
}

// --- Runs ---

func (e *Impl) RunBacktest(ctx context.Context, req BacktestRequest) (*Report, error) {
	id, p, err := e.resolve(req.StrategyRef)
	if err != nil {
		return nil, err
	}
	bars, err := e.load(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	rep, err := Run(market.NewSliceFeed(bars, req.From, req.To), p, e.options(id))
	if err != nil {
		return nil, err
	}
	if err := e.save(ctx, rep, ""); err != nil {
		return nil, err
	}
	return rep, nil
}

func (e *Impl) RunWindows(ctx context.Context, req WindowsRequest) ([]WindowReport, error) {
	id, p, err := e.resolve(req.StrategyRef)
	if err != nil {
		return nil, err
	}
	windows := req.Windows
	if len(windows) == 0 {
		for _, wc := range e.configs.Windows {
			from, to, err := wc.Range()
			if err != nil {
				return nil, err
			}
			windows = append(windows, Window{Name: wc.Name, From: from, To: to})
		}
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("%w: no windows", ErrInvalidParams)
	}
	bars, err := e.load(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	out, err := RunWindows(ctx, bars, p, windows, e.workers, e.options(id))
	if err != nil {
		return nil, err
	}
	for _, w := range out {
		if err := e.save(ctx, w.Report, ""); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *Impl) Sweep(ctx context.Context, req SweepRequest) (*SweepResult, error) {
	id, p, err := e.resolve(req.StrategyRef)
	if err != nil {
		return nil, err
	}
	grid := req.Grid
	if len(grid) == 0 {
		for _, sc := range e.configs.Sweeps {
			if sc.Strategy == id {
				grid = Grid(sc.Grid)
				break
			}
		}
	}
	bars, err := e.load(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	bars, err = market.Collect(market.NewSliceFeed(bars, req.From, req.To))
	if err != nil {
		return nil, err
	}
	res, err := Sweep(ctx, bars, p, grid, e.workers, e.options(id))
	if err != nil {
		return nil, err
	}
	res.BestReport.Label = "sweep best"
	if err := e.save(ctx, res.BestReport, res.ID); err != nil {
		return nil, err
	}
	e.log.Info("sweep finished", "strategy", id, "combinations", len(res.Runs),
		"best_value", res.Best.FinalValue, "best", res.Best.Values)
	return res, nil
}

// --- Stored results ---

func (e *Impl) GetRun(ctx context.Context, id string) (*db.RunDetail, error) {
	if e.store == nil {
		return nil, fmt.Errorf("run %s: %w", id, db.ErrNotFound)
	}
	return e.store.GetRun(ctx, id)
}

func (e *Impl) ListRuns(ctx context.Context, limit int) ([]db.Run, error) {
	if e.store == nil {
		return []db.Run{}, nil
	}
	return e.store.ListRuns(ctx, limit)
}

// --- Catalog ---

func (e *Impl) ListStrategies(_ context.Context) ([]StrategyInfo, error) {
	var out []StrategyInfo
	seen := make(map[string]bool)
	for _, c := range e.configs.Strategies {
		p, err := c.Params()
		if err != nil {
			return nil, err
		}
		out = append(out, StrategyInfo{ID: c.ID, Name: c.Name, Kind: c.Type, Params: p})
		seen[c.ID] = true
	}
	for _, kind := range e.registry.List() {
		if seen[kind] {
			continue
		}
		out = append(out, StrategyInfo{ID: kind, Name: kind, Kind: kind, Params: e.defaults(kind)})
	}
	return out, nil
}

func (e *Impl) GetSystemStatus(ctx context.Context) *SystemStatus {
	st := e.meta
	st.Uptime = time.Since(st.StartedAt).Round(time.Second).String()
	if lister, ok := e.bars.(interface {
		ListDatasets(context.Context) ([]string, error)
	}); ok {
		st.Datasets, _ = lister.ListDatasets(ctx)
	}
	return &st
}

// --- helpers ---

// resolve turns a reference into the strategy id used for building and the
// final parameters: kind defaults, then the configured entry, then overrides.
func (e *Impl) resolve(ref StrategyRef) (string, Params, error) {
	var p Params
	id := ref.StrategyID
	if c, ok := e.configs.Strategy(id); ok {
		base, err := e.defaults(c.Type).Apply(c.Parameters)
		if err != nil {
			return "", p, fmt.Errorf("strategy %s: %w", c.ID, err)
		}
		base.Kind = c.Type
		p = base
	} else {
		kind := ref.Kind
		if kind == "" {
			kind = id
		}
		if _, ok := e.registry.Get(kind); !ok {
			return "", p, fmt.Errorf("%w: unknown strategy %q", ErrInvalidParams, cmp.Or(id, kind))
		}
		p = e.defaults(kind)
		if id == "" {
			id = kind
		}
	}
	p, err := p.Apply(ref.Params)
	if err != nil {
		return "", p, err
	}
	if err := p.Validate(); err != nil {
		return "", p, err
	}
	return id, p, nil
}

func (e *Impl) load(ctx context.Context, src Source) ([]market.Bar, error) {
	if len(src.Bars) > 0 {
		return src.Bars, nil
	}
	if src.Dataset == "" {
		return nil, ErrNoBars
	}
	if e.bars == nil {
		return nil, fmt.Errorf("dataset %q: no bar source configured", src.Dataset)
	}
	key := src.Dataset + "|" + day(src.From) + "|" + day(src.To)
	if e.barCache != nil {
		if bars, ok := e.barCache.Get(key); ok {
			return bars, nil
		}
	}
	bars, err := e.bars.ReadBars(ctx, src.Dataset, src.From, src.To)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("dataset %q: %w", src.Dataset, ErrNoBars)
	}
	if e.barCache != nil {
		e.barCache.Set(key, bars)
	}
	return bars, nil
}

func (e *Impl) options(id string) Options {
	return Options{StrategyID: id, Registry: e.registry, Logger: e.log, Bus: e.bus}
}

func (e *Impl) save(ctx context.Context, rep *Report, sweepID string) error {
	if e.store == nil || rep == nil {
		return nil
	}
	if err := e.store.SaveRun(ctx, rep.Record(sweepID, time.Now().UTC())); err != nil {
		return fmt.Errorf("save run %s: %w", rep.RunID, err)
	}
	return nil
}
