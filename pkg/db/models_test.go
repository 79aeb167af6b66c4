package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	return database
}

func TestApplyMigrationsIdempotent(t *testing.T) {
	database := openTestDB(t)
	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("second migration: %v", err)
	}
	ok, err := columnExists(database.DB, "backtest_runs", "sweep_id")
	if err != nil || !ok {
		t.Fatalf("sweep_id column exists=%v err=%v", ok, err)
	}
}

func TestSaveAndGetRun(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	day := time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)

	rd := RunDetail{
		Run: Run{
			ID: "run-1", StrategyID: "bb", Kind: "bollinger_rsi_macd", Params: `{"maperiod":20}`,
			WindowFrom: day, WindowTo: day.AddDate(1, 0, 0), Bars: 250,
			InitialCash: 1000, FinalValue: 1098.9, FinalCash: 1098.9, CreatedAt: created,
		},
		Trades: []Trade{{Seq: 1, EntryPrice: 50, ExitPrice: 60, Size: 10, PnL: 100, PnLComm: 98.9, OpenedAt: day, ClosedAt: day.AddDate(0, 0, 4)}},
		Events: []OrderEvent{
			{Seq: 1, OrderID: "1", Side: "BUY", Size: 10, BarIndex: 1, Outcome: "Completed", Price: 50, Commission: 0.5, At: day},
			{Seq: 2, OrderID: "2", Side: "BUY", Size: 100, BarIndex: 7, Outcome: "Margin", Reason: "insufficient balance", At: day.AddDate(0, 0, 7)},
		},
	}
	if err := database.SaveRun(ctx, rd); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := database.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Run.FinalValue != 1098.9 || !got.Run.CreatedAt.Equal(created) || !got.Run.WindowFrom.Equal(day) {
		t.Fatalf("run=%+v", got.Run)
	}
	if len(got.Trades) != 1 || got.Trades[0].PnLComm != 98.9 {
		t.Fatalf("trades=%+v", got.Trades)
	}
	if len(got.Events) != 2 || got.Events[1].Outcome != "Margin" {
		t.Fatalf("events=%+v", got.Events)
	}

	runs, err := database.ListRuns(ctx, 10)
	if err != nil || len(runs) != 1 || runs[0].ID != "run-1" {
		t.Fatalf("runs=%+v err=%v", runs, err)
	}

	if err := database.SaveRun(ctx, rd); err == nil {
		t.Fatalf("expected duplicate run id to fail")
	}
}

func TestGetRunNotFound(t *testing.T) {
	database := openTestDB(t)
	if _, err := database.GetRun(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, expected ErrNotFound", err)
	}
}

func TestConnectionPragmas(t *testing.T) {
	database := openTestDB(t)

	var fk, busy int
	if err := database.DB.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil || fk != 1 {
		t.Fatalf("foreign_keys=%d err=%v, expected 1", fk, err)
	}
	if err := database.DB.QueryRow("PRAGMA busy_timeout").Scan(&busy); err != nil || busy != 5000 {
		t.Fatalf("busy_timeout=%d err=%v, expected 5000", busy, err)
	}

	_, err := database.DB.Exec(`
		INSERT INTO backtest_trades (run_id, seq, entry_price, exit_price, size, pnl, pnlcomm, opened_at, closed_at)
		VALUES ('no-such-run', 1, 1, 1, 1, 0, 0, 0, 0)`)
	if err == nil {
		t.Fatal("trade for a missing run was accepted")
	}
}
