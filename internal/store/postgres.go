package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"backtest-core/pkg/db"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
    id TEXT PRIMARY KEY,
    strategy_id TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL,
    params JSONB NOT NULL,
    sweep_id TEXT NOT NULL DEFAULT '',
    label TEXT NOT NULL DEFAULT '',
    window_from TIMESTAMPTZ,
    window_to TIMESTAMPTZ,
    bars INTEGER NOT NULL,
    initial_cash DOUBLE PRECISION NOT NULL,
    final_value DOUBLE PRECISION NOT NULL,
    final_cash DOUBLE PRECISION NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS backtest_trades (
    run_id TEXT NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    entry_price DOUBLE PRECISION NOT NULL,
    exit_price DOUBLE PRECISION NOT NULL,
    size DOUBLE PRECISION NOT NULL,
    pnl DOUBLE PRECISION NOT NULL,
    pnlcomm DOUBLE PRECISION NOT NULL,
    opened_at TIMESTAMPTZ,
    closed_at TIMESTAMPTZ,
    PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS backtest_order_events (
    run_id TEXT NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    order_id TEXT NOT NULL,
    side TEXT NOT NULL,
    size DOUBLE PRECISION NOT NULL,
    bar_index INTEGER NOT NULL,
    outcome TEXT NOT NULL,
    price DOUBLE PRECISION NOT NULL DEFAULT 0,
    commission DOUBLE PRECISION NOT NULL DEFAULT 0,
    reason TEXT NOT NULL DEFAULT '',
    at TIMESTAMPTZ,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_backtest_runs_created ON backtest_runs(created_at DESC);
`

// PostgresStore keeps runs in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the result tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, pgSchema)
	return err
}

func (s *PostgresStore) SaveRun(ctx context.Context, rd db.RunDetail) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	r := rd.Run
	_, err = tx.Exec(ctx,
		`INSERT INTO backtest_runs (id, strategy_id, kind, params, sweep_id, label, window_from, window_to,
		                            bars, initial_cash, final_value, final_cash, created_at)
		 VALUES ($1, $2, $3, $4::JSONB, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.StrategyID, r.Kind, r.Params, r.SweepID, r.Label, r.WindowFrom, r.WindowTo,
		r.Bars, r.InitialCash, r.FinalValue, r.FinalCash, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}

	batch := &pgx.Batch{}
	for _, t := range rd.Trades {
		batch.Queue(
			`INSERT INTO backtest_trades (run_id, seq, entry_price, exit_price, size, pnl, pnlcomm, opened_at, closed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			r.ID, t.Seq, t.EntryPrice, t.ExitPrice, t.Size, t.PnL, t.PnLComm, t.OpenedAt, t.ClosedAt)
	}
	for _, e := range rd.Events {
		batch.Queue(
			`INSERT INTO backtest_order_events (run_id, seq, order_id, side, size, bar_index, outcome, price, commission, reason, at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			r.ID, e.Seq, e.OrderID, e.Side, e.Size, e.BarIndex, e.Outcome, e.Price, e.Commission, e.Reason, e.At)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert details of run %s: %w", r.ID, err)
		}
	}
	return tx.Commit(ctx)
}

const pgRunColumns = `id, strategy_id, kind, params::TEXT, sweep_id, label,
       COALESCE(window_from, 'epoch'::TIMESTAMPTZ), COALESCE(window_to, 'epoch'::TIMESTAMPTZ),
       bars, initial_cash, final_value, final_cash, created_at`

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*db.RunDetail, error) {
	r, err := scanPGRun(s.pool.QueryRow(ctx, `SELECT `+pgRunColumns+` FROM backtest_runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	rd := &db.RunDetail{Run: r, Trades: []db.Trade{}, Events: []db.OrderEvent{}}

	rows, err := s.pool.Query(ctx,
		`SELECT seq, entry_price, exit_price, size, pnl, pnlcomm, opened_at, closed_at
		 FROM backtest_trades WHERE run_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var t db.Trade
		if err := rows.Scan(&t.Seq, &t.EntryPrice, &t.ExitPrice, &t.Size, &t.PnL, &t.PnLComm, &t.OpenedAt, &t.ClosedAt); err != nil {
			rows.Close()
			return nil, err
		}
		rd.Trades = append(rd.Trades, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.pool.Query(ctx,
		`SELECT seq, order_id, side, size, bar_index, outcome, price, commission, reason, at
		 FROM backtest_order_events WHERE run_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e db.OrderEvent
		if err := rows.Scan(&e.Seq, &e.OrderID, &e.Side, &e.Size, &e.BarIndex, &e.Outcome, &e.Price, &e.Commission, &e.Reason, &e.At); err != nil {
			return nil, err
		}
		rd.Events = append(rd.Events, e)
	}
	return rd, rows.Err()
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]db.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgRunColumns+` FROM backtest_runs ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []db.Run{}
	for rows.Next() {
		r, err := scanPGRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanPGRun(row pgx.Row) (db.Run, error) {
	var r db.Run
	err := row.Scan(&r.ID, &r.StrategyID, &r.Kind, &r.Params, &r.SweepID, &r.Label, &r.WindowFrom, &r.WindowTo,
		&r.Bars, &r.InitialCash, &r.FinalValue, &r.FinalCash, &r.CreatedAt)
	return r, err
}
