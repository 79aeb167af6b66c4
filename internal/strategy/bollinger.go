package strategy

import (
	"fmt"

	"backtest-core/internal/indicators"
)

// BollingerRSIMACD buys a close below the lower band confirmed by an
// oversold RSI or a bullish MACD, and sells a close above the upper band
// confirmed by an overbought RSI or a MACD at or below its signal line.
type BollingerRSIMACD struct {
	Period     int
	DevFactor  float64
	Oversold   float64
	Overbought float64
}

func (r BollingerRSIMACD) Name() string {
	return fmt.Sprintf("Bollinger_RSI_MACD_%d_%.1f_%g_%g", r.Period, r.DevFactor, r.Oversold, r.Overbought)
}

func (r BollingerRSIMACD) Requires() []string {
	return []string{indicators.BBTop, indicators.BBBot, indicators.RSIValue, indicators.MACDLine, indicators.MACDSignal}
}

func (r BollingerRSIMACD) Entry(in Input) (bool, string) {
	s := in.Snapshot
	price := in.Bar.Close
	if price >= s[indicators.BBBot] {
		return false, ""
	}
	rsi, macd, signal := s[indicators.RSIValue], s[indicators.MACDLine], s[indicators.MACDSignal]
	if rsi < r.Oversold || macd > signal {
		return true, fmt.Sprintf("close %.2f < lower band %.2f, rsi %.1f, macd %.4f/%.4f",
			price, s[indicators.BBBot], rsi, macd, signal)
	}
	return false, ""
}

func (r BollingerRSIMACD) Exit(in Input) (bool, string) {
	s := in.Snapshot
	price := in.Bar.Close
	if price <= s[indicators.BBTop] {
		return false, ""
	}
	rsi, macd, signal := s[indicators.RSIValue], s[indicators.MACDLine], s[indicators.MACDSignal]
	if rsi > r.Overbought || macd <= signal {
		return true, fmt.Sprintf("close %.2f > upper band %.2f, rsi %.1f, macd %.4f/%.4f",
			price, s[indicators.BBTop], rsi, macd, signal)
	}
	return false, ""
}
