package indicators

// RSI is Wilder's Relative Strength Index. Average gain and loss are seeded
// with the simple mean of the first period close-to-close moves and then
// smoothed as avg = (avg*(period-1) + x) / period. The first reading is
// available after period+1 closes.
type RSI struct {
	period  int
	prev    float64
	seen    int
	avgGain float64
	avgLoss float64
}

func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Update(close float64) (float64, bool) {
	r.seen++
	if r.seen == 1 {
		r.prev = close
		return 0, false
	}

	change := close - r.prev
	r.prev = close
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	moves := r.seen - 1
	p := float64(r.period)
	switch {
	case moves < r.period:
		r.avgGain += gain
		r.avgLoss += loss
		return 0, false
	case moves == r.period:
		r.avgGain = (r.avgGain + gain) / p
		r.avgLoss = (r.avgLoss + loss) / p
	default:
		r.avgGain = (r.avgGain*(p-1) + gain) / p
		r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	}
	return rsiValue(r.avgGain, r.avgLoss), true
}

func rsiValue(gain, loss float64) float64 {
	if loss == 0 {
		return 100
	}
	v := 100 - 100/(1+gain/loss)
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
