package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"backtest-core/internal/market"
	"backtest-core/internal/monitor"
	"backtest-core/internal/strategy"
)

// ErrEmptyGrid is returned by Sweep when the grid yields no combination.
var ErrEmptyGrid = errors.New("empty parameter grid")

// Grid maps parameter names (as accepted by Params.Set) to candidate values.
type Grid map[string][]float64

// MaxCombinations caps the number of runs one sweep may launch.
const MaxCombinations = 10_000

// Size is the number of combinations the grid expands to, saturating at
// math.MaxInt.
func (g Grid) Size() int {
	if len(g) == 0 {
		return 0
	}
	for _, vs := range g {
		if len(vs) == 0 {
			return 0
		}
	}
	n := 1
	for _, vs := range g {
		if n > math.MaxInt/len(vs) {
			return math.MaxInt
		}
		n *= len(vs)
	}
	return n
}

// Validate checks parameter names and the grid size before any run starts.
func (g Grid) Validate() error {
	if len(g) == 0 {
		return ErrEmptyGrid
	}
	n := 1
	for _, name := range slices.Sorted(maps.Keys(g)) {
		if !strategy.Settable(name) {
			return fmt.Errorf("%w: unknown parameter %q", ErrInvalidParams, name)
		}
		vs := g[name]
		if len(vs) == 0 {
			return fmt.Errorf("%w: no values for %q", ErrEmptyGrid, name)
		}
		if n > MaxCombinations/len(vs) {
			return fmt.Errorf("%w: grid exceeds %d combinations", ErrInvalidParams, MaxCombinations)
		}
		n *= len(vs)
	}
	return nil
}

// Combinations lazily enumerates the cartesian product of the grid in a
// stable order: names sorted, last name varying fastest.
func (g Grid) Combinations() iter.Seq[map[string]float64] {
	names := slices.Sorted(maps.Keys(g))
	return func(yield func(map[string]float64) bool) {
		if g.Size() == 0 {
			return
		}
		idx := make([]int, len(names))
		for {
			combo := make(map[string]float64, len(names))
			for i, n := range names {
				combo[n] = g[n][idx[i]]
			}
			if !yield(combo) {
				return
			}
			i := len(names) - 1
			for ; i >= 0; i-- {
				idx[i]++
				if idx[i] < len(g[names[i]]) {
					break
				}
				idx[i] = 0
			}
			if i < 0 {
				return
			}
		}
	}
}

// SweepRun is one grid point and its outcome.
type SweepRun struct {
	Values     map[string]float64 `json:"values"`
	Params     Params             `json:"params"`
	RunID      string             `json:"run_id"`
	FinalValue float64            `json:"final_value"`
	Summary    Summary            `json:"summary"`
}

// SweepResult lists every run in enumeration order and the best one.
type SweepResult struct {
	ID   string     `json:"id"`
	Runs []SweepRun `json:"runs"`
	Best SweepRun   `json:"best"`
	// BestReport is the full report of the best run.
	BestReport *Report `json:"best_report"`
}

// Sweep runs base with every grid combination over bars on a bounded pool
// of workers. The best run is the one with the highest final value; ties go
// to the earliest combination. Cancellation is checked between runs.
func Sweep(ctx context.Context, bars []market.Bar, base Params, grid Grid, workers int, opts Options) (*SweepResult, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	total := grid.Size()

	runs := make([]SweepRun, total)
	reports := make([]*Report, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit(workers))
	var buildErr error
	i := 0
	for combo := range grid.Combinations() {
		if gctx.Err() != nil {
			break
		}
		p, err := apply(base, combo)
		if err != nil {
			buildErr = err
			break
		}
		n := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o := opts
			o.RunID = ""
			if o.Logger != nil {
				o.Logger = o.Logger.With("combination", n)
			}
			rep, err := Run(market.NewSliceFeed(bars, time.Time{}, time.Time{}), p, o)
			if err != nil {
				return fmt.Errorf("combination %v: %w", combo, err)
			}
			monitor.SweepCombinations.Inc()
			runs[n] = SweepRun{Values: combo, Params: p, RunID: rep.RunID, FinalValue: rep.FinalValue, Summary: rep.Summary}
			reports[n] = rep
			return nil
		})
		i++
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if buildErr != nil {
		return nil, buildErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	best := 0
	for k := 1; k < total; k++ {
		if runs[k].FinalValue > runs[best].FinalValue {
			best = k
		}
	}
	return &SweepResult{ID: uuid.NewString(), Runs: runs, Best: runs[best], BestReport: reports[best]}, nil
}

func apply(base Params, combo map[string]float64) (Params, error) {
	p := base
	for name, v := range combo {
		if err := p.Set(name, v); err != nil {
			return p, err
		}
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("combination %v: %w", combo, err)
	}
	return p, nil
}
