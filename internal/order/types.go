package order

import (
	"errors"
	"time"
)

// ErrOrderPending is returned when an order is submitted while another one
// is still outstanding.
var ErrOrderPending = errors.New("order already pending")

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Status is the lifecycle state of an order. Submitted and Accepted are
// collapsed into Pending; the remaining states are terminal.
type Status int

const (
	StatusNone Status = iota
	StatusPending
	StatusCompleted
	StatusCanceled
	StatusMargin
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusCompleted:
		return "Completed"
	case StatusCanceled:
		return "Canceled"
	case StatusMargin:
		return "Margin"
	case StatusRejected:
		return "Rejected"
	default:
		return "None"
	}
}

// Terminal reports whether the order can no longer change.
func (s Status) Terminal() bool {
	return s >= StatusCompleted
}

// Order is a market order intent created on one bar and resolved on the next.
type Order struct {
	ID         string
	Side       Side
	Size       float64
	CreatedBar int
	CreatedAt  time.Time
	Status     Status
	Note       string
}

// Fill is an executed order. Immutable once produced.
type Fill struct {
	OrderID    string    `json:"order_id"`
	Side       Side      `json:"side"`
	Price      float64   `json:"price"`
	Size       float64   `json:"size"`
	Commission float64   `json:"commission"`
	Timestamp  time.Time `json:"timestamp"`
}

// Value is the notional of the fill.
func (f Fill) Value() float64 {
	return f.Price * f.Size
}

// Event records how a pending order was resolved.
type Event struct {
	OrderID   string    `json:"order_id"`
	Side      Side      `json:"side"`
	Size      float64   `json:"size"`
	BarIndex  int       `json:"bar_index"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"-"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	Fill      *Fill     `json:"fill,omitempty"`
}
