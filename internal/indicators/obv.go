package indicators

// OBV is on-balance volume: a running total that adds the bar volume on a
// higher close, subtracts it on a lower close and holds on a tie. It starts
// at 0 and needs two bars before it reports a value.
type OBV struct {
	prev  float64
	seen  bool
	value float64
}

func NewOBV() *OBV {
	return &OBV{}
}

func (o *OBV) Update(close, volume float64) (float64, bool) {
	if !o.seen {
		o.seen = true
		o.prev = close
		return 0, false
	}
	switch {
	case close > o.prev:
		o.value += volume
	case close < o.prev:
		o.value -= volume
	}
	o.prev = close
	return o.value, true
}
