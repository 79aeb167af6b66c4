package engine

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"backtest-core/internal/order"
	"backtest-core/internal/state"
	"backtest-core/internal/strategy"
	"backtest-core/pkg/db"
)

// EquityPoint is the portfolio marked at one bar's close.
type EquityPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
	Cash  float64   `json:"cash"`
}

// TradeReport is one closed round trip.
type TradeReport struct {
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Size       float64   `json:"size"`
	PnL        float64   `json:"pnl"`
	PnLComm    float64   `json:"pnlcomm"`
	Commission float64   `json:"commission"`
	OpenedAt   time.Time `json:"opened_at"`
	ClosedAt   time.Time `json:"closed_at"`
}

// Report is the outcome of one backtest run.
type Report struct {
	RunID       string          `json:"run_id"`
	StrategyID  string          `json:"strategy_id"`
	Strategy    string          `json:"strategy"`
	Label       string          `json:"label,omitempty"`
	Params      strategy.Params `json:"params"`
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	Bars        int             `json:"bars"`
	InitialCash float64         `json:"initial_cash"`
	FinalValue  float64         `json:"final_value"`
	FinalCash   float64         `json:"final_cash"`
	Position    state.Position  `json:"position"`
	Trades      []TradeReport   `json:"trades"`
	OrderEvents []order.Event   `json:"order_events"`
	Equity      []EquityPoint   `json:"equity,omitempty"`
	Summary     Summary         `json:"summary"`
}

// Window is a named inclusive date range.
type Window struct {
	Name string    `json:"name"`
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// WindowReport is the rounded per-window result. LeftoverCash is the cash
// left beside an open position; it is zero when the window ended flat.
type WindowReport struct {
	Window       Window  `json:"window"`
	RunID        string  `json:"run_id"`
	Bars         int     `json:"bars"`
	FinalValue   float64 `json:"final_value"`
	LeftoverCash float64 `json:"leftover_cash"`
	Trades       int     `json:"trades"`
	Report       *Report `json:"-"`
}

// NewWindowReport summarizes a run for a window, rounding money to cents.
func NewWindowReport(w Window, r *Report) WindowReport {
	leftover := 0.0
	if !r.Position.Flat() {
		leftover = r.FinalCash
	}
	return WindowReport{
		Window:       w,
		RunID:        r.RunID,
		Bars:         r.Bars,
		FinalValue:   round2(r.FinalValue),
		LeftoverCash: round2(leftover),
		Trades:       len(r.Trades),
		Report:       r,
	}
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Record converts the report into its stored form. sweepID groups runs
// launched by one sweep and may be empty.
func (r *Report) Record(sweepID string, createdAt time.Time) db.RunDetail {
	params, _ := json.Marshal(r.Params)
	rd := db.RunDetail{
		Run: db.Run{
			ID:          r.RunID,
			StrategyID:  r.StrategyID,
			Kind:        r.Params.Kind,
			Params:      string(params),
			SweepID:     sweepID,
			Label:       r.Label,
			WindowFrom:  r.From,
			WindowTo:    r.To,
			Bars:        r.Bars,
			InitialCash: r.InitialCash,
			FinalValue:  r.FinalValue,
			FinalCash:   r.FinalCash,
			CreatedAt:   createdAt,
		},
		Trades: make([]db.Trade, 0, len(r.Trades)),
		Events: make([]db.OrderEvent, 0, len(r.OrderEvents)),
	}
	for i, t := range r.Trades {
		rd.Trades = append(rd.Trades, db.Trade{
			Seq:        i + 1,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Size:       t.Size,
			PnL:        t.PnL,
			PnLComm:    t.PnLComm,
			OpenedAt:   t.OpenedAt,
			ClosedAt:   t.ClosedAt,
		})
	}
	for i, e := range r.OrderEvents {
		oe := db.OrderEvent{
			Seq:      i + 1,
			OrderID:  e.OrderID,
			Side:     string(e.Side),
			Size:     e.Size,
			BarIndex: e.BarIndex,
			Outcome:  e.Outcome,
			Reason:   e.Reason,
			At:       e.Timestamp,
		}
		if e.Fill != nil {
			oe.Price, oe.Commission = e.Fill.Price, e.Fill.Commission
		}
		rd.Events = append(rd.Events, oe)
	}
	return rd
}
