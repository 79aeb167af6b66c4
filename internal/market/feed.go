package market

import (
	"sync/atomic"
	"time"
)

// Feed is a finite, time-ordered and restartable sequence of bars.
// Next returns ok=false once the feed is exhausted or closed.
type Feed interface {
	Next() (Bar, bool, error)
	Reset() error
	Close() error
}

// SliceFeed replays an in-memory bar slice restricted to an inclusive date
// range. The slice is shared read-only, so many feeds may replay the same
// bars concurrently.
type SliceFeed struct {
	bars   []Bar
	from   time.Time
	to     time.Time
	pos    int
	closed atomic.Bool
}

// NewSliceFeed builds a feed over bars. A zero from or to leaves that side of
// the range open.
func NewSliceFeed(bars []Bar, from, to time.Time) *SliceFeed {
	return &SliceFeed{bars: bars, from: from, to: to}
}

// Next returns the next bar inside the range. Ordering is not checked here;
// the backtest driver validates every bar it consumes.
func (f *SliceFeed) Next() (Bar, bool, error) {
	for f.pos < len(f.bars) {
		if f.closed.Load() {
			return Bar{}, false, nil
		}
		b := f.bars[f.pos]
		f.pos++
		if !f.from.IsZero() && b.Timestamp.Before(f.from) {
			continue
		}
		if !f.to.IsZero() && b.Timestamp.After(f.to) {
			continue
		}
		return b, true, nil
	}
	return Bar{}, false, nil
}

// Reset rewinds the feed to its first bar and reopens it.
func (f *SliceFeed) Reset() error {
	f.pos = 0
	f.closed.Store(false)
	return nil
}

// Close makes the feed report exhaustion on the next call to Next. It is safe
// to call from another goroutine.
func (f *SliceFeed) Close() error {
	f.closed.Store(true)
	return nil
}

// Collect drains a feed into a slice.
func Collect(f Feed) ([]Bar, error) {
	var out []Bar
	for {
		b, ok, err := f.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, b)
	}
}
