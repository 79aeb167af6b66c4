package events

import "time"

// Event enumerates topics published while backtests run.
type Event string

const (
	EventOrderCompleted   Event = "order.completed"
	EventOrderCanceled    Event = "order.canceled"
	EventOrderMargin      Event = "order.margin"
	EventOrderRejected    Event = "order.rejected"
	EventTradeClosed      Event = "trade.closed"
	EventBacktestFinished Event = "backtest.finished"
)

// AllEvents lists every topic, in a stable order.
var AllEvents = []Event{
	EventOrderCompleted,
	EventOrderCanceled,
	EventOrderMargin,
	EventOrderRejected,
	EventTradeClosed,
	EventBacktestFinished,
}

// Envelope tags a payload with its topic for multiplexed subscribers.
type Envelope struct {
	Topic   Event  `json:"topic"`
	RunID   string `json:"run_id,omitempty"`
	Payload any    `json:"payload"`
}

// OrderOutcome is published when a pending order resolves.
type OrderOutcome struct {
	RunID      string    `json:"run_id"`
	OrderID    string    `json:"order_id"`
	Side       string    `json:"side"`
	Size       float64   `json:"size"`
	Status     string    `json:"status"`
	Price      float64   `json:"price,omitempty"`
	Commission float64   `json:"commission,omitempty"`
	BarIndex   int       `json:"bar_index"`
	Time       time.Time `json:"time"`
}

// TradeClosed is published when a round trip completes.
type TradeClosed struct {
	RunID   string  `json:"run_id"`
	Entry   float64 `json:"entry_price"`
	Exit    float64 `json:"exit_price"`
	Size    float64 `json:"size"`
	PnL     float64 `json:"pnl"`
	PnLComm float64 `json:"pnlcomm"`
}

// BacktestFinished is published once per completed run.
type BacktestFinished struct {
	RunID      string  `json:"run_id"`
	Strategy   string  `json:"strategy"`
	FinalValue float64 `json:"final_value"`
	Bars       int     `json:"bars"`
}
