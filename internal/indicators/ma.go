package indicators

// window keeps the last n inputs in arrival order.
type window struct {
	buf  []float64
	n    int
	head int
	full bool
}

func newWindow(n int) *window {
	return &window{buf: make([]float64, n), n: n}
}

func (w *window) push(x float64) {
	w.buf[w.head] = x
	w.head = (w.head + 1) % w.n
	if w.head == 0 {
		w.full = true
	}
}

// each visits values oldest first. Only meaningful once the window is full.
func (w *window) each(fn func(i int, x float64)) {
	for i := 0; i < w.n; i++ {
		fn(i, w.buf[(w.head+i)%w.n])
	}
}

// SMA is an incremental simple moving average.
type SMA struct {
	period int
	w      *window
}

func NewSMA(period int) *SMA {
	return &SMA{period: period, w: newWindow(period)}
}

// Update feeds one value and returns the average of the last period values.
// ok is false until period values have been seen.
func (s *SMA) Update(x float64) (float64, bool) {
	s.w.push(x)
	if !s.w.full {
		return 0, false
	}
	sum := 0.0
	s.w.each(func(_ int, v float64) { sum += v })
	return sum / float64(s.period), true
}

// WMA is a linearly weighted moving average: weights 1..period, newest heaviest.
type WMA struct {
	period int
	w      *window
	norm   float64
}

func NewWMA(period int) *WMA {
	return &WMA{period: period, w: newWindow(period), norm: float64(period*(period+1)) / 2}
}

func (m *WMA) Update(x float64) (float64, bool) {
	m.w.push(x)
	if !m.w.full {
		return 0, false
	}
	sum := 0.0
	m.w.each(func(i int, v float64) { sum += float64(i+1) * v })
	return sum / m.norm, true
}

// EMA is an exponential moving average seeded with the SMA of its first
// period inputs, then smoothed with alpha = 2/(period+1).
type EMA struct {
	period int
	alpha  float64
	seed   float64
	count  int
	value  float64
}

func NewEMA(period int) *EMA {
	return &EMA{period: period, alpha: 2.0 / float64(period+1)}
}

func (e *EMA) Update(x float64) (float64, bool) {
	e.count++
	if e.count < e.period {
		e.seed += x
		return 0, false
	}
	if e.count == e.period {
		e.value = (e.seed + x) / float64(e.period)
		return e.value, true
	}
	e.value += e.alpha * (x - e.value)
	return e.value, true
}
