package strategy

import "math"

// Sizer decides how many units an entry buys.
type Sizer interface {
	Size(in Input) float64
}

// FixedSizer always buys the same whole number of units.
type FixedSizer struct {
	Units float64
}

func (s FixedSizer) Size(Input) float64 {
	return math.Floor(s.Units)
}

// PercentSizer spends a fraction of cash or of portfolio value, rounded down
// to whole units at the current close.
type PercentSizer struct {
	Fraction float64
	Base     string
}

func (s PercentSizer) Size(in Input) float64 {
	if in.Bar.Close <= 0 {
		return 0
	}
	base := in.Cash
	if s.Base == SizeBaseValue {
		base = in.Value
	}
	if base <= 0 {
		return 0
	}
	return math.Floor(base * s.Fraction / in.Bar.Close)
}

// NewSizer picks the sizer described by p.
func NewSizer(p Params) Sizer {
	if p.FixedSize > 0 {
		return FixedSizer{Units: p.FixedSize}
	}
	return PercentSizer{Fraction: p.Fraction, Base: p.SizeBase}
}
