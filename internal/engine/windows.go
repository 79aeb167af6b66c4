package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"backtest-core/internal/market"
	"backtest-core/internal/strategy"
)

// Params and ErrInvalidParams are re-exported for callers that only deal
// with the driver.
type Params = strategy.Params

var ErrInvalidParams = strategy.ErrInvalidParams

// RunWindows runs p independently over each window of bars. Every window
// starts from p.InitialCash with a fresh broker and indicator engine.
// Results keep the order of windows.
func RunWindows(ctx context.Context, bars []market.Bar, p Params, windows []Window, workers int, opts Options) ([]WindowReport, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	out := make([]WindowReport, len(windows))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit(workers))
	for i, w := range windows {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			o := opts
			o.RunID = ""
			if o.Logger != nil {
				o.Logger = o.Logger.With(slog.String("window", w.Name))
			}
			rep, err := Run(market.NewSliceFeed(bars, w.From, w.To), p, o)
			if err != nil {
				return fmt.Errorf("window %s: %w", w.Name, err)
			}
			rep.Label = w.Name
			out[i] = NewWindowReport(w, rep)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func limit(workers int) int {
	if workers <= 0 {
		return 1
	}
	return workers
}
