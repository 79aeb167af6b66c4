package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformedBar is returned when a bar is missing a field or breaks the
// strictly increasing timestamp order of its feed.
var ErrMalformedBar = errors.New("malformed bar")

// Bar is one OHLCV observation. Bars are immutable once produced by a feed.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Validate checks the fields of a single bar.
func (b Bar) Validate() error {
	if b.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrMalformedBar)
	}
	prices := [...]struct {
		name string
		v    float64
	}{{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}}
	for _, p := range prices {
		if math.IsNaN(p.v) || math.IsInf(p.v, 0) || p.v <= 0 {
			return fmt.Errorf("%w: %s=%v at %s", ErrMalformedBar, p.name, p.v, b.Timestamp.Format(time.DateOnly))
		}
	}
	if math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) || b.Volume < 0 {
		return fmt.Errorf("%w: volume=%v at %s", ErrMalformedBar, b.Volume, b.Timestamp.Format(time.DateOnly))
	}
	return nil
}

// ValidateNext checks b and that it strictly follows prev. A zero prev is
// treated as "no previous bar".
func ValidateNext(prev, b Bar) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if !prev.Timestamp.IsZero() && !b.Timestamp.After(prev.Timestamp) {
		return fmt.Errorf("%w: timestamp %s does not follow %s", ErrMalformedBar,
			b.Timestamp.Format(time.RFC3339), prev.Timestamp.Format(time.RFC3339))
	}
	return nil
}
