package strategy

import (
	"backtest-core/internal/indicators"
	"backtest-core/internal/market"
	"backtest-core/internal/state"
)

// Action is the side of a trading decision.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Signal is a decision emitted by a strategy.
type Signal struct {
	StrategyID string // The ID of the strategy instance
	Action     Action
	Size       float64
	Note       string
}

// Input is everything a strategy may look at on one bar. It never contains
// data from later bars.
type Input struct {
	Bar      market.Bar
	BarIndex int
	Snapshot indicators.Snapshot
	Previous indicators.Snapshot // snapshot of the prior bar, nil on the first bar
	Position state.Position
	Cash     float64
	Value    float64 // cash plus position marked at Bar.Close
	Pending  bool    // an order is still outstanding
}

// Strategy defines the interface for all strategies.
type Strategy interface {
	// ID returns the unique instance ID
	ID() string
	// Name returns the human-readable name
	Name() string
	// Decide returns at most one order intent for the bar, or nil.
	Decide(in Input) *Signal
}
