package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"backtest-core/internal/api"
	"backtest-core/internal/data"
	"backtest-core/internal/engine"
	"backtest-core/internal/market"
	"backtest-core/internal/store"
	"backtest-core/internal/strategy"
	"backtest-core/pkg/logging"
)

// backtest runs strategies from the command line without the HTTP service.
//
// Usage (from the module root):
//   go run ./scripts/backtest -data orcl.csv -kind bollinger_rsi_macd
//   go run ./scripts/backtest -data orcl.csv -config strategies.yaml -strategy bb-cash -mode windows
//   go run ./scripts/backtest -mock 500 -config strategies.yaml -strategy bb-cash -mode sweep
//   go run ./scripts/backtest -data orcl.csv -import ORCL -datadir ./data
//   go run ./scripts/backtest -token alice -secret s3cret

func main() {
	var (
		dataPath   = flag.String("data", "", "bar file (.csv Yahoo export or .parquet)")
		mockBars   = flag.Int("mock", 0, "generate N synthetic bars instead of reading -data")
		configPath = flag.String("config", "", "strategy YAML file")
		strategyID = flag.String("strategy", "", "strategy id from -config")
		kind       = flag.String("kind", "", "strategy kind when no -strategy is given")
		set        = flag.String("set", "", "parameter overrides, e.g. devfactor=2.5,rsi_oversold=30")
		fromStr    = flag.String("from", "", "first day to include (YYYY-MM-DD)")
		toStr      = flag.String("to", "", "last day to include (YYYY-MM-DD)")
		mode       = flag.String("mode", "run", "run, windows or sweep")
		workers    = flag.Int("workers", runtime.NumCPU(), "parallel runs for windows and sweeps")
		asJSON     = flag.Bool("json", false, "print results as JSON")
		importAs   = flag.String("import", "", "store the loaded bars as this Parquet dataset and exit")
		dataDir    = flag.String("datadir", "./data", "Parquet dataset directory for -import")
		logLevel   = flag.String("log-level", "info", "debug, info, warn or error")
		token      = flag.String("token", "", "issue an API token for this subject and exit")
		secret     = flag.String("secret", os.Getenv("JWT_SECRET"), "JWT secret for -token")
	)
	flag.Parse()

	logger := logging.New(*logLevel, "text")
	slog.SetDefault(logger)

	if *token != "" {
		tok, err := api.IssueToken(*token, *secret, 24*time.Hour)
		if err != nil {
			fatal("issue token", err)
		}
		fmt.Println(tok)
		return
	}

	from, err := parseDay(*fromStr)
	if err != nil {
		fatal("parse -from", err)
	}
	to, err := parseDay(*toStr)
	if err != nil {
		fatal("parse -to", err)
	}

	bars, err := loadBars(*dataPath, *mockBars, from, to)
	if err != nil {
		fatal("load bars", err)
	}
	logger.Info("bars loaded", "count", len(bars))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *importAs != "" {
		ps := data.NewParquetStore(*dataDir)
		if err := ps.WriteBars(ctx, *importAs, bars); err != nil {
			fatal("import", err)
		}
		logger.Info("dataset written", "dataset", strings.ToUpper(*importAs), "dir", *dataDir)
		return
	}

	var cfgFile *strategy.ConfigFile
	if *configPath != "" {
		if cfgFile, err = strategy.LoadConfig(*configPath); err != nil {
			fatal("load config", err)
		}
	}
	overrides, err := parseSet(*set)
	if err != nil {
		fatal("parse -set", err)
	}

	svc := engine.NewImpl(engine.Config{
		Strategies: cfgFile,
		Store:      store.NewMemoryStore(),
		Logger:     logger,
		Workers:    *workers,
	})
	ref := engine.StrategyRef{StrategyID: *strategyID, Kind: *kind, Params: overrides}
	src := engine.Source{Bars: bars}

	switch *mode {
	case "run":
		rep, err := svc.RunBacktest(ctx, engine.BacktestRequest{StrategyRef: ref, Source: src})
		if err != nil {
			fatal("backtest", err)
		}
		if *asJSON {
			rep.Equity = nil
			printJSON(rep)
			return
		}
		printReport(rep)
	case "windows":
		out, err := svc.RunWindows(ctx, engine.WindowsRequest{StrategyRef: ref, Source: src})
		if err != nil {
			fatal("windows", err)
		}
		if *asJSON {
			printJSON(out)
			return
		}
		printWindows(out)
	case "sweep":
		res, err := svc.Sweep(ctx, engine.SweepRequest{StrategyRef: ref, Source: src})
		if err != nil {
			fatal("sweep", err)
		}
		if *asJSON {
			res.BestReport = nil
			printJSON(res)
			return
		}
		printSweep(res)
	default:
		fatal("mode", fmt.Errorf("unknown mode %q", *mode))
	}
}

func loadBars(path string, mock int, from, to time.Time) ([]market.Bar, error) {
	if mock > 0 {
		gen := market.MockSeries{Seed: 1, Start: time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC), Step: 0.02}
		return market.Collect(market.NewSliceFeed(gen.Generate(mock), from, to))
	}
	if path == "" {
		return nil, fmt.Errorf("either -data or -mock is required")
	}
	return data.LoadFile(path, from, to)
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

func parseSet(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	out := make(map[string]any)
	for _, kv := range strings.Split(s, ",") {
		name, val, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if !ok {
			return nil, fmt.Errorf("expected name=value, got %q", kv)
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = f
	}
	return out, nil
}

func printReport(r *engine.Report) {
	fmt.Printf("Strategy:      %s (%s)\n", r.Strategy, r.StrategyID)
	fmt.Printf("Period:        %s -> %s (%d bars)\n", r.From.Format(time.DateOnly), r.To.Format(time.DateOnly), r.Bars)
	fmt.Printf("Initial cash:  %.2f\n", r.InitialCash)
	fmt.Printf("Final value:   %.2f\n", r.FinalValue)
	fmt.Printf("Final cash:    %.2f\n", r.FinalCash)
	fmt.Printf("Position:      %d @ %.2f\n", int64(r.Position.Size), r.Position.AvgPrice)
	s := r.Summary
	fmt.Printf("Trades:        %d (won %d, lost %d, win rate %.1f%%)\n", s.Trades, s.Won, s.Lost, s.WinRate*100)
	fmt.Printf("Net PnL:       %.2f (commission %.2f)\n", s.NetPnL, s.Commission)
	fmt.Printf("Return:        %.2f%%  Max drawdown: %.2f%%\n", s.ReturnPct, s.MaxDrawdown)
	for i, t := range r.Trades {
		fmt.Printf("  #%d %s -> %s size=%.0f entry=%.2f exit=%.2f pnl=%.2f pnlcomm=%.2f\n",
			i+1, t.OpenedAt.Format(time.DateOnly), t.ClosedAt.Format(time.DateOnly),
			t.Size, t.EntryPrice, t.ExitPrice, t.PnL, t.PnLComm)
	}
}

func printWindows(out []engine.WindowReport) {
	fmt.Printf("%-12s %-10s %-10s %6s %12s %12s %6s\n", "window", "from", "to", "bars", "value", "cash", "trades")
	for _, w := range out {
		fmt.Printf("%-12s %-10s %-10s %6d %12.2f %12.2f %6d\n",
			w.Window.Name, w.Window.From.Format(time.DateOnly), w.Window.To.Format(time.DateOnly),
			w.Bars, w.FinalValue, w.LeftoverCash, w.Trades)
	}
}

func printSweep(res *engine.SweepResult) {
	fmt.Printf("Sweep %s: %d runs\n", res.ID, len(res.Runs))
	for _, run := range res.Runs {
		fmt.Printf("  %-40s value=%.2f trades=%d\n", formatValues(run.Values), run.FinalValue, run.Summary.Trades)
	}
	fmt.Printf("Best: %s value=%.2f\n", formatValues(res.Best.Values), res.Best.FinalValue)
}

func formatValues(v map[string]float64) string {
	names := make([]string, 0, len(v))
	for n := range v {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%g", n, v[n])
	}
	return strings.Join(parts, " ")
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("encode", err)
	}
}

func fatal(what string, err error) {
	slog.Error(what, "error", err)
	os.Exit(1)
}
