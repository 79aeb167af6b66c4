package market

import (
	"math"
	"math/rand/v2"
	"time"
)

// MockSeries generates synthetic daily bars for local development and demos.
// The same Seed always yields the same series.
type MockSeries struct {
	Seed       uint64
	Start      time.Time
	StartPrice float64
	Step       float64 // max relative move per bar, e.g. 0.02
	Volume     float64
}

// Generate returns n bars, one per calendar day.
func (m MockSeries) Generate(n int) []Bar {
	start := m.Start
	if start.IsZero() {
		start = time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)
	}
	price := m.StartPrice
	if price == 0 {
		price = 100.0
	}
	step := m.Step
	if step == 0 {
		step = 0.02
	}
	vol := m.Volume
	if vol == 0 {
		vol = 1_000_000
	}

	rng := rand.New(rand.NewPCG(m.Seed, m.Seed^0x9e3779b97f4a7c15))
	bars := make([]Bar, 0, n)
	for i := 0; i < n; i++ {
		open := price
		// simple random walk on the close
		closePx := math.Max(open*(1+(rng.Float64()*2-1)*step), 0.01)
		high := math.Max(open, closePx) * (1 + rng.Float64()*step/2)
		low := math.Min(open, closePx) * (1 - rng.Float64()*step/2)
		bars = append(bars, Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      open,
			High:      high,
			Low:       math.Max(low, 0.01),
			Close:     closePx,
			Volume:    math.Round(vol * (0.5 + rng.Float64())),
		})
		price = closePx
	}
	return bars
}
