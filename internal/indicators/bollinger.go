package indicators

import "math"

// Bands is one Bollinger reading.
type Bands struct {
	Top, Mid, Bot float64
}

// Bollinger computes mid = SMA(period) and top/bot = mid ± devfactor·σ,
// where σ is the population standard deviation of the same window.
type Bollinger struct {
	period    int
	devfactor float64
	w         *window
}

func NewBollinger(period int, devfactor float64) *Bollinger {
	return &Bollinger{period: period, devfactor: devfactor, w: newWindow(period)}
}

func (b *Bollinger) Update(x float64) (Bands, bool) {
	b.w.push(x)
	if !b.w.full {
		return Bands{}, false
	}
	n := float64(b.period)
	sum := 0.0
	b.w.each(func(_ int, v float64) { sum += v })
	mean := sum / n
	sq := 0.0
	b.w.each(func(_ int, v float64) {
		d := v - mean
		sq += d * d
	})
	dev := b.devfactor * math.Sqrt(sq/n)
	return Bands{Top: mean + dev, Mid: mean, Bot: mean - dev}, true
}
