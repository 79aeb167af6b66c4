package strategy

import (
	"fmt"

	"backtest-core/internal/indicators"
)

// MACross implements a simple moving average crossover.
// Entry on a golden cross (short SMA crosses above long SMA),
// exit on a death cross (short SMA crosses below long SMA).
type MACross struct {
	Short, Long int
}

func (r MACross) Name() string {
	return fmt.Sprintf("MA_Cross_%d_%d", r.Short, r.Long)
}

func (r MACross) Requires() []string {
	return []string{indicators.SMAShort, indicators.SMALong}
}

func (r MACross) Entry(in Input) (bool, string) {
	oldFast, oldSlow, ok := r.previous(in)
	if !ok {
		return false, ""
	}
	fast, slow := in.Snapshot[indicators.SMAShort], in.Snapshot[indicators.SMALong]
	if oldFast <= oldSlow && fast > slow {
		return true, fmt.Sprintf("Golden cross: MA%d(%.2f) > MA%d(%.2f)", r.Short, fast, r.Long, slow)
	}
	return false, ""
}

func (r MACross) Exit(in Input) (bool, string) {
	oldFast, oldSlow, ok := r.previous(in)
	if !ok {
		return false, ""
	}
	fast, slow := in.Snapshot[indicators.SMAShort], in.Snapshot[indicators.SMALong]
	if oldFast >= oldSlow && fast < slow {
		return true, fmt.Sprintf("Death cross: MA%d(%.2f) < MA%d(%.2f)", r.Short, fast, r.Long, slow)
	}
	return false, ""
}

// previous returns the averages of the prior bar; a cross needs both bars.
func (r MACross) previous(in Input) (float64, float64, bool) {
	fast, err := in.Previous.Value(indicators.SMAShort)
	if err != nil {
		return 0, 0, false
	}
	slow, err := in.Previous.Value(indicators.SMALong)
	if err != nil {
		return 0, 0, false
	}
	return fast, slow, true
}
