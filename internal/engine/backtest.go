package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"backtest-core/internal/events"
	"backtest-core/internal/indicators"
	"backtest-core/internal/market"
	"backtest-core/internal/monitor"
	"backtest-core/internal/order"
	"backtest-core/internal/state"
	"backtest-core/internal/strategy"
)

// Options carries the collaborators of a run. All fields are optional.
type Options struct {
	RunID      string // generated when empty
	StrategyID string
	Registry   *strategy.Registry // defaults to strategy.DefaultRegistry()
	Logger     *slog.Logger
	Bus        *events.Bus
}

// Backtest replays one feed through one strategy. Each Backtest owns its
// indicator engine, strategy and simulated broker, so independent runs never
// share mutable state.
type Backtest struct {
	id         string
	strategyID string
	params     strategy.Params
	strat      strategy.Strategy
	ind        *indicators.Engine
	broker     *order.Simulator
	log        *slog.Logger
	bus        *events.Bus
}

// New validates p and builds a ready-to-run backtest.
func New(p strategy.Params, opts Options) (*Backtest, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	reg := opts.Registry
	if reg == nil {
		reg = strategy.DefaultRegistry()
	}
	id := opts.RunID
	if id == "" {
		id = uuid.NewString()
	}
	sid := opts.StrategyID
	if sid == "" {
		sid = p.Kind
	}
	strat, err := reg.Build(sid, p)
	if err != nil {
		return nil, err
	}
	ind, err := indicators.NewEngine(p.IndicatorConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", strategy.ErrInvalidParams, err)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Backtest{
		id:         id,
		strategyID: sid,
		params:     p,
		strat:      strat,
		ind:        ind,
		broker:     order.NewSimulator(p.InitialCash, p.Commission),
		log:        log.With("run_id", id, "strategy", strat.Name()),
		bus:        opts.Bus,
	}, nil
}

// Run executes the strategy over a feed and returns the run report. Per bar:
// validate, resolve the pending order at the open, update indicators, decide,
// submit, then mark the portfolio at the close. The run ends when the feed is
// exhausted; open positions are left open and an unresolved order is canceled.
// A malformed bar aborts the run.
func (b *Backtest) Run(feed market.Feed) (*Report, error) {
	start := time.Now()
	rep, err := b.run(feed)
	bars := 0
	if rep != nil {
		bars = rep.Bars
	}
	monitor.ObserveRun(b.params.Kind, time.Since(start), bars, err)
	return rep, err
}

func (b *Backtest) run(feed market.Feed) (*Report, error) {
	var (
		prev   market.Bar
		idx    int
		equity []EquityPoint
		first  time.Time
	)
	for {
		bar, ok, err := feed.Next()
		if err != nil {
			return nil, fmt.Errorf("read bar %d: %w", idx, err)
		}
		if !ok {
			break
		}
		if err := market.ValidateNext(prev, bar); err != nil {
			return nil, fmt.Errorf("bar %d: %w", idx, err)
		}
		if idx == 0 {
			first = bar.Timestamp
		}
		prev = bar

		if ev, closed := b.broker.Resolve(bar, idx); ev != nil {
			b.onOrder(*ev)
			if closed != nil {
				b.onTrade(*closed)
			}
		}

		snap := b.ind.Update(bar)
		_, pending := b.broker.Pending()
		in := strategy.Input{
			Bar:      bar,
			BarIndex: idx,
			Snapshot: snap,
			Previous: b.ind.Previous(),
			Position: b.broker.Position(),
			Cash:     b.broker.Cash(),
			Value:    b.broker.Value(bar.Close),
			Pending:  pending,
		}
		if sig := b.strat.Decide(in); sig != nil {
			side := order.SideBuy
			if sig.Action == strategy.ActionSell {
				side = order.SideSell
			}
			if _, err := b.broker.Submit(side, sig.Size, idx, bar.Timestamp, sig.Note); err != nil {
				return nil, fmt.Errorf("bar %d: %w", idx, err)
			}
			b.log.Debug(fmt.Sprintf("%s CREATE", side), "date", day(bar.Timestamp), "close", bar.Close, "size", sig.Size, "note", sig.Note)
		}

		equity = append(equity, EquityPoint{Time: bar.Timestamp, Value: b.broker.Value(bar.Close), Cash: b.broker.Cash()})
		idx++
	}

	if ev := b.broker.Cancel(idx-1, prev.Timestamp, "feed exhausted"); ev != nil {
		b.onOrder(*ev)
	}

	rep := b.report(first, prev.Timestamp, idx, equity, prev.Close)
	b.log.Info("Ending Value",
		"value", rep.FinalValue,
		"cash", rep.FinalCash,
		"bars", rep.Bars,
		"trades", len(rep.Trades),
		"maperiod", b.params.MAPeriod,
		"devfactor", b.params.DevFactor,
	)
	b.bus.Publish(events.EventBacktestFinished, events.BacktestFinished{
		RunID:      b.id,
		Strategy:   b.strat.Name(),
		FinalValue: rep.FinalValue,
		Bars:       rep.Bars,
	})
	return rep, nil
}

func (b *Backtest) onOrder(ev order.Event) {
	monitor.OrderOutcomes.WithLabelValues(ev.Outcome).Inc()
	payload := events.OrderOutcome{
		RunID:    b.id,
		OrderID:  ev.OrderID,
		Side:     string(ev.Side),
		Size:     ev.Size,
		Status:   ev.Outcome,
		BarIndex: ev.BarIndex,
		Time:     ev.Timestamp,
	}
	switch ev.Status {
	case order.StatusCompleted:
		f := ev.Fill
		payload.Price, payload.Commission = f.Price, f.Commission
		b.log.Debug(fmt.Sprintf("%s EXECUTED", ev.Side), "date", day(ev.Timestamp),
			"price", f.Price, "cost", f.Value(), "comm", f.Commission)
		b.bus.Publish(events.EventOrderCompleted, payload)
	case order.StatusMargin:
		b.log.Debug("Order Canceled/Margin/Rejected", "outcome", ev.Outcome, "reason", ev.Reason)
		b.bus.Publish(events.EventOrderMargin, payload)
	case order.StatusRejected:
		b.log.Debug("Order Canceled/Margin/Rejected", "outcome", ev.Outcome, "reason", ev.Reason)
		b.bus.Publish(events.EventOrderRejected, payload)
	case order.StatusCanceled:
		b.log.Debug("Order Canceled/Margin/Rejected", "outcome", ev.Outcome, "reason", ev.Reason)
		b.bus.Publish(events.EventOrderCanceled, payload)
	}
}

func (b *Backtest) onTrade(t state.Trade) {
	monitor.ObserveTrade(t.PnLComm)
	b.log.Debug("OPERATION PROFIT", "date", day(t.ClosedAt), "gross", t.PnL, "net", t.PnLComm)
	b.bus.Publish(events.EventTradeClosed, events.TradeClosed{
		RunID:   b.id,
		Entry:   t.EntryPrice,
		Exit:    t.ExitPrice,
		Size:    t.Size,
		PnL:     t.PnL,
		PnLComm: t.PnLComm,
	})
}

func (b *Backtest) report(from, to time.Time, bars int, equity []EquityPoint, lastClose float64) *Report {
	trades := b.broker.Trades()
	tr := make([]TradeReport, 0, len(trades))
	for _, t := range trades {
		tr = append(tr, TradeReport{
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Size:       t.Size,
			PnL:        t.PnL,
			PnLComm:    t.PnLComm,
			Commission: t.Commission,
			OpenedAt:   t.OpenedAt,
			ClosedAt:   t.ClosedAt,
		})
	}
	final := b.params.InitialCash
	if bars > 0 {
		final = b.broker.Value(lastClose)
	}
	rep := &Report{
		RunID:       b.id,
		StrategyID:  b.strategyID,
		Strategy:    b.strat.Name(),
		Params:      b.params,
		From:        from,
		To:          to,
		Bars:        bars,
		InitialCash: b.params.InitialCash,
		FinalValue:  final,
		FinalCash:   b.broker.Cash(),
		Position:    b.broker.Position(),
		Trades:      tr,
		OrderEvents: b.broker.Events(),
		Equity:      equity,
	}
	rep.Summary = Summarize(rep)
	return rep
}

// Run is a convenience wrapper around New and Backtest.Run.
func Run(feed market.Feed, p strategy.Params, opts Options) (*Report, error) {
	bt, err := New(p, opts)
	if err != nil {
		return nil, err
	}
	return bt.Run(feed)
}

func day(t time.Time) string {
	return t.Format(time.DateOnly)
}
