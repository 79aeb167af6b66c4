package engine

import (
	"context"
	"errors"
	"math"
	"reflect"
	"slices"
	"testing"
	"time"

	"backtest-core/internal/market"
	"backtest-core/internal/strategy"
	"backtest-core/pkg/logging"
)

func TestGridCombinations(t *testing.T) {
	g := Grid{"b": {3, 4, 5}, "a": {1, 2}}
	if g.Size() != 6 {
		t.Fatalf("size=%d, expected 6", g.Size())
	}
	var got [][2]float64
	for c := range g.Combinations() {
		got = append(got, [2]float64{c["a"], c["b"]})
	}
	want := [][2]float64{{1, 3}, {1, 4}, {1, 5}, {2, 3}, {2, 4}, {2, 5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("combinations=%v, expected %v", got, want)
	}

	// Stops early when the consumer does.
	n := 0
	for range g.Combinations() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("consumed %d", n)
	}

	if (Grid{}).Size() != 0 || (Grid{"a": {}}).Size() != 0 {
		t.Fatal("empty grids must have size 0")
	}
}

func TestSweepPicksMaximumInEnumerationOrder(t *testing.T) {
	bars := market.MockSeries{Seed: 9, Step: 0.03}.Generate(500)
	base := strategy.DefaultParams(strategy.KindBollingerRSIMACD)
	grid := Grid{"maperiod": {10, 20, 30}, "devfactor": {1.5, 2, 2.5}}
	opts := Options{Logger: logging.Discard()}

	res, err := Sweep(context.Background(), bars, base, grid, 4, opts)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(res.Runs) != 9 || res.ID == "" {
		t.Fatalf("runs=%d id=%q", len(res.Runs), res.ID)
	}

	i := 0
	best := math.Inf(-1)
	for combo := range grid.Combinations() {
		run := res.Runs[i]
		if !reflect.DeepEqual(run.Values, combo) {
			t.Fatalf("run %d values=%v, expected %v", i, run.Values, combo)
		}
		p := base
		p.MAPeriod, p.DevFactor = int(combo["maperiod"]), combo["devfactor"]
		rep, err := Run(market.NewSliceFeed(bars, time.Time{}, time.Time{}), p, opts)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if rep.FinalValue != run.FinalValue {
			t.Fatalf("run %d final value %v differs from sequential %v", i, run.FinalValue, rep.FinalValue)
		}
		best = math.Max(best, rep.FinalValue)
		i++
	}
	if res.Best.FinalValue != best || res.BestReport.FinalValue != best {
		t.Fatalf("best=%v, expected %v", res.Best.FinalValue, best)
	}
	first := slices.IndexFunc(res.Runs, func(r SweepRun) bool { return r.FinalValue == best })
	if res.Best.RunID != res.Runs[first].RunID {
		t.Fatalf("best is not the first maximising combination")
	}
}

func TestSweepTiesGoToFirstCombination(t *testing.T) {
	s := &scripted{plan: map[int]strategy.Signal{0: buy(10), 3: sell(10)}}
	opts := Options{Registry: scriptedRegistry(s), Logger: logging.Discard()}
	// The scripted strategy ignores rsi_period, so every run ties.
	grid := Grid{"rsi_period": {20, 10, 14}}

	res, err := Sweep(context.Background(), fiveBars(), strategy.DefaultParams(kindScripted), grid, 1, opts)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Best.Values["rsi_period"] != 20 {
		t.Fatalf("best=%v, expected the first combination", res.Best.Values)
	}
}

func TestSweepErrors(t *testing.T) {
	bars := fiveBars()
	base := strategy.DefaultParams(strategy.KindBollingerRSIMACD)
	ctx := context.Background()

	if _, err := Sweep(ctx, bars, base, Grid{}, 2, Options{}); !errors.Is(err, ErrEmptyGrid) {
		t.Fatalf("empty grid err=%v", err)
	}
	if _, err := Sweep(ctx, bars, base, Grid{"bogus": {1}}, 2, Options{}); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("unknown name err=%v", err)
	}
	if _, err := Sweep(ctx, bars, base, Grid{"maperiod": {10, 0}}, 2, Options{}); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("invalid value err=%v", err)
	}
	if _, err := Sweep(ctx, bars, base, Grid{"maperiod": {10.5}}, 2, Options{}); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("fractional period err=%v", err)
	}

	if _, err := Sweep(ctx, bars, base, Grid{"maperiod": {10}, "devfactor": {}}, 2, Options{}); !errors.Is(err, ErrEmptyGrid) {
		t.Fatalf("empty dimension err=%v", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := Sweep(canceled, bars, base, Grid{"maperiod": {10, 20}}, 2, Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled err=%v", err)
	}
}

func TestSweepRejectsOversizedGrid(t *testing.T) {
	names := []string{
		"maperiod", "macd_short", "macd_long", "macd_signal", "rsi_period",
		"short_period", "long_period", "obv_period", "devfactor", "rsi_oversold",
		"rsi_overbought", "fixed_size", "fraction", "commission", "initial_cash",
	}
	values := make([]float64, 40)
	for i := range values {
		values[i] = float64(i + 1)
	}
	huge := Grid{}
	for _, n := range names {
		huge[n] = values
	}
	if got := huge.Size(); got != math.MaxInt {
		t.Fatalf("size=%d, expected saturation at MaxInt", got)
	}

	wide := Grid{"maperiod": make([]float64, 200), "rsi_period": make([]float64, 200)}
	if wide.Size() != 40_000 {
		t.Fatalf("size=%d, expected 40000", wide.Size())
	}

	bars := fiveBars()
	base := strategy.DefaultParams(strategy.KindBollingerRSIMACD)
	for name, g := range map[string]Grid{"overflowing": huge, "over cap": wide} {
		t.Run(name, func(t *testing.T) {
			if _, err := Sweep(context.Background(), bars, base, g, 2, Options{}); !errors.Is(err, ErrInvalidParams) {
				t.Fatalf("err=%v, expected ErrInvalidParams", err)
			}
		})
	}
}

func TestGridValidateChecksNamesFirst(t *testing.T) {
	g := Grid{"maperiod": {10, 20}, "bogus": {1}}
	if err := g.Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("err=%v, expected ErrInvalidParams", err)
	}
	if err := (Grid{"maperiod": {10, 20}, "devfactor": {1.5, 2}}).Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
