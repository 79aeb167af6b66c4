package strategy

import (
	"fmt"

	"backtest-core/internal/indicators"
)

// WMAOBV follows the WMA trend when on-balance volume agrees with it, and
// falls back to Bollinger/RSI mean reversion otherwise.
//
// Entry: (wma_short > wma_long and obv > 0) or (close < lower band and rsi < oversold).
// Exit:  (wma_short < wma_long and obv < 0) or (close > upper band and rsi > overbought).
type WMAOBV struct {
	Short, Long int
	Oversold    float64
	Overbought  float64
}

func (r WMAOBV) Name() string {
	return fmt.Sprintf("WMA_OBV_%d_%d", r.Short, r.Long)
}

func (r WMAOBV) Requires() []string {
	return []string{indicators.WMAShort, indicators.WMALong, indicators.OBVValue,
		indicators.BBTop, indicators.BBBot, indicators.RSIValue}
}

func (r WMAOBV) Entry(in Input) (bool, string) {
	s := in.Snapshot
	short, long, obv := s[indicators.WMAShort], s[indicators.WMALong], s[indicators.OBVValue]
	if short > long && obv > 0 {
		return true, fmt.Sprintf("wma %.2f > %.2f, obv %.0f", short, long, obv)
	}
	if in.Bar.Close < s[indicators.BBBot] && s[indicators.RSIValue] < r.Oversold {
		return true, fmt.Sprintf("close %.2f < lower band %.2f, rsi %.1f", in.Bar.Close, s[indicators.BBBot], s[indicators.RSIValue])
	}
	return false, ""
}

func (r WMAOBV) Exit(in Input) (bool, string) {
	s := in.Snapshot
	short, long, obv := s[indicators.WMAShort], s[indicators.WMALong], s[indicators.OBVValue]
	if short < long && obv < 0 {
		return true, fmt.Sprintf("wma %.2f < %.2f, obv %.0f", short, long, obv)
	}
	if in.Bar.Close > s[indicators.BBTop] && s[indicators.RSIValue] > r.Overbought {
		return true, fmt.Sprintf("close %.2f > upper band %.2f, rsi %.1f", in.Bar.Close, s[indicators.BBTop], s[indicators.RSIValue])
	}
	return false, ""
}
