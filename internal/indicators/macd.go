package indicators

// MACDValue is one MACD reading. SignalReady turns true signal-1 bars after
// the macd line itself becomes available.
type MACDValue struct {
	MACD        float64
	Signal      float64
	Hist        float64
	SignalReady bool
}

// MACD tracks EMA(short) - EMA(long) and an EMA of that difference.
type MACD struct {
	short, long *EMA
	signal      *EMA
}

func NewMACD(short, long, signal int) *MACD {
	return &MACD{short: NewEMA(short), long: NewEMA(long), signal: NewEMA(signal)}
}

func (m *MACD) Update(close float64) (MACDValue, bool) {
	s, okS := m.short.Update(close)
	l, okL := m.long.Update(close)
	if !okS || !okL {
		return MACDValue{}, false
	}
	v := MACDValue{MACD: s - l}
	if sig, ok := m.signal.Update(v.MACD); ok {
		v.Signal = sig
		v.Hist = v.MACD - sig
		v.SignalReady = true
	}
	return v, true
}
