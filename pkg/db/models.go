package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Run is a stored backtest result header.
type Run struct {
	ID          string    `json:"id"`
	StrategyID  string    `json:"strategy_id"`
	Kind        string    `json:"kind"`
	Params      string    `json:"params"` // JSON
	SweepID     string    `json:"sweep_id,omitempty"`
	Label       string    `json:"label,omitempty"`
	WindowFrom  time.Time `json:"window_from"`
	WindowTo    time.Time `json:"window_to"`
	Bars        int       `json:"bars"`
	InitialCash float64   `json:"initial_cash"`
	FinalValue  float64   `json:"final_value"`
	FinalCash   float64   `json:"final_cash"`
	CreatedAt   time.Time `json:"created_at"`
}

// Trade is a closed round trip of a stored run.
type Trade struct {
	Seq        int       `json:"seq"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Size       float64   `json:"size"`
	PnL        float64   `json:"pnl"`
	PnLComm    float64   `json:"pnlcomm"`
	OpenedAt   time.Time `json:"opened_at"`
	ClosedAt   time.Time `json:"closed_at"`
}

// OrderEvent is a resolved order of a stored run.
type OrderEvent struct {
	Seq        int       `json:"seq"`
	OrderID    string    `json:"order_id"`
	Side       string    `json:"side"`
	Size       float64   `json:"size"`
	BarIndex   int       `json:"bar_index"`
	Outcome    string    `json:"outcome"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// RunDetail is a run with its trades and order events.
type RunDetail struct {
	Run    Run          `json:"run"`
	Trades []Trade      `json:"trades"`
	Events []OrderEvent `json:"order_events"`
}

// SaveRun stores a run with its trades and events in one transaction.
func (d *Database) SaveRun(ctx context.Context, rd RunDetail) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	r := rd.Run
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO backtest_runs (
			id, strategy_id, kind, params, sweep_id, label, window_from, window_to,
			bars, initial_cash, final_value, final_cash, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.StrategyID, r.Kind, r.Params, r.SweepID, r.Label, toMillis(r.WindowFrom), toMillis(r.WindowTo),
		r.Bars, r.InitialCash, r.FinalValue, r.FinalCash, toMillis(r.CreatedAt),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}

	for _, t := range rd.Trades {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO backtest_trades (run_id, seq, entry_price, exit_price, size, pnl, pnlcomm, opened_at, closed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, t.Seq, t.EntryPrice, t.ExitPrice, t.Size, t.PnL, t.PnLComm, toMillis(t.OpenedAt), toMillis(t.ClosedAt)); err != nil {
			return fmt.Errorf("insert trade %d of run %s: %w", t.Seq, r.ID, err)
		}
	}
	for _, e := range rd.Events {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO backtest_order_events (run_id, seq, order_id, side, size, bar_index, outcome, price, commission, reason, at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, e.Seq, e.OrderID, e.Side, e.Size, e.BarIndex, e.Outcome, e.Price, e.Commission, e.Reason, toMillis(e.At)); err != nil {
			return fmt.Errorf("insert order event %d of run %s: %w", e.Seq, r.ID, err)
		}
	}
	return tx.Commit()
}

// GetRun loads a run with its trades and events.
func (d *Database) GetRun(ctx context.Context, id string) (*RunDetail, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT id, strategy_id, kind, params, sweep_id, label, window_from, window_to,
		       bars, initial_cash, final_value, final_cash, created_at
		FROM backtest_runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	rd := &RunDetail{Run: r, Trades: []Trade{}, Events: []OrderEvent{}}

	trows, err := d.DB.QueryContext(ctx, `
		SELECT seq, entry_price, exit_price, size, pnl, pnlcomm, opened_at, closed_at
		FROM backtest_trades WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer trows.Close()
	for trows.Next() {
		var t Trade
		var opened, closed int64
		if err := trows.Scan(&t.Seq, &t.EntryPrice, &t.ExitPrice, &t.Size, &t.PnL, &t.PnLComm, &opened, &closed); err != nil {
			return nil, err
		}
		t.OpenedAt, t.ClosedAt = fromMillis(opened), fromMillis(closed)
		rd.Trades = append(rd.Trades, t)
	}
	if err := trows.Err(); err != nil {
		return nil, err
	}

	erows, err := d.DB.QueryContext(ctx, `
		SELECT seq, order_id, side, size, bar_index, outcome, price, commission, reason, at
		FROM backtest_order_events WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer erows.Close()
	for erows.Next() {
		var e OrderEvent
		var at int64
		if err := erows.Scan(&e.Seq, &e.OrderID, &e.Side, &e.Size, &e.BarIndex, &e.Outcome, &e.Price, &e.Commission, &e.Reason, &at); err != nil {
			return nil, err
		}
		e.At = fromMillis(at)
		rd.Events = append(rd.Events, e)
	}
	return rd, erows.Err()
}

// ListRuns returns the newest runs first.
func (d *Database) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, strategy_id, kind, params, sweep_id, label, window_from, window_to,
		       bars, initial_cash, final_value, final_cash, created_at
		FROM backtest_runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var from, to, created int64
	var strategyID, sweepID, label sql.NullString
	err := s.Scan(&r.ID, &strategyID, &r.Kind, &r.Params, &sweepID, &label, &from, &to,
		&r.Bars, &r.InitialCash, &r.FinalValue, &r.FinalCash, &created)
	if err != nil {
		return r, err
	}
	r.StrategyID, r.SweepID, r.Label = strategyID.String, sweepID.String, label.String
	r.WindowFrom, r.WindowTo, r.CreatedAt = fromMillis(from), fromMillis(to), fromMillis(created)
	return r, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
