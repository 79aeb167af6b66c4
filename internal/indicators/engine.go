package indicators

import (
	"errors"
	"fmt"

	"backtest-core/internal/market"
)

// MaxPeriod bounds every indicator window.
const MaxPeriod = 100_000

// ErrInvalidPeriod is returned for a period outside [1, MaxPeriod] or a
// non-positive band width.
var ErrInvalidPeriod = errors.New("invalid indicator period")

// ErrInsufficientHistory means an indicator has not seen enough bars yet.
// Strategies treat it as "no signal"; it never aborts a run.
var ErrInsufficientHistory = errors.New("insufficient history")

// Snapshot names available in every engine.
const (
	BBTop      = "bb_top"
	BBMid      = "bb_mid"
	BBBot      = "bb_bot"
	RSIValue   = "rsi"
	MACDLine   = "macd"
	MACDSignal = "macd_signal"
	MACDHist   = "macd_hist"
	SMAShort   = "sma_short"
	SMALong    = "sma_long"
	WMAShort   = "wma_short"
	WMALong    = "wma_long"
	OBVValue   = "obv"
	OBVSMA     = "obv_sma"
)

// Snapshot holds the indicator values for one bar. A missing key means the
// indicator is still warming up.
type Snapshot map[string]float64

// Get returns the value and whether it is available.
func (s Snapshot) Get(name string) (float64, bool) {
	v, ok := s[name]
	return v, ok
}

// Value is Get with the warm-up state reported as ErrInsufficientHistory.
func (s Snapshot) Value(name string) (float64, error) {
	v, ok := s[name]
	if !ok {
		return 0, fmt.Errorf("%s: %w", name, ErrInsufficientHistory)
	}
	return v, nil
}

// Has reports whether every named value is available.
func (s Snapshot) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := s[n]; !ok {
			return false
		}
	}
	return true
}

// Config selects the windows used by an Engine.
type Config struct {
	MAPeriod    int     // Bollinger window
	DevFactor   float64 // Bollinger band width
	RSIPeriod   int
	MACDShort   int
	MACDLong    int
	MACDSignal  int
	ShortPeriod int // short SMA/WMA
	LongPeriod  int // long SMA/WMA
	OBVPeriod   int // smoothing window for obv_sma
}

// Validate rejects non-positive or oversized windows.
func (c Config) Validate() error {
	periods := []struct {
		name string
		v    int
	}{
		{"maperiod", c.MAPeriod},
		{"rsi_period", c.RSIPeriod},
		{"macd_short", c.MACDShort},
		{"macd_long", c.MACDLong},
		{"macd_signal", c.MACDSignal},
		{"short_period", c.ShortPeriod},
		{"long_period", c.LongPeriod},
		{"obv_period", c.OBVPeriod},
	}
	for _, p := range periods {
		if p.v <= 0 || p.v > MaxPeriod {
			return fmt.Errorf("%w: %s=%d outside [1, %d]", ErrInvalidPeriod, p.name, p.v, MaxPeriod)
		}
	}
	if !(c.DevFactor > 0) {
		return fmt.Errorf("%w: devfactor=%v", ErrInvalidPeriod, c.DevFactor)
	}
	return nil
}

// Engine updates every indicator once per bar, in bar order. It holds no
// future data: the snapshot for bar t depends only on bars up to t.
// An Engine belongs to a single backtest run and is not safe for concurrent use.
type Engine struct {
	bb       *Bollinger
	rsi      *RSI
	macd     *MACD
	smaShort *SMA
	smaLong  *SMA
	wmaShort *WMA
	wmaLong  *WMA
	obv      *OBV
	obvSMA   *SMA

	bars int
	prev Snapshot
	last Snapshot
}

// NewEngine builds an indicator engine for cfg.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		bb:       NewBollinger(cfg.MAPeriod, cfg.DevFactor),
		rsi:      NewRSI(cfg.RSIPeriod),
		macd:     NewMACD(cfg.MACDShort, cfg.MACDLong, cfg.MACDSignal),
		smaShort: NewSMA(cfg.ShortPeriod),
		smaLong:  NewSMA(cfg.LongPeriod),
		wmaShort: NewWMA(cfg.ShortPeriod),
		wmaLong:  NewWMA(cfg.LongPeriod),
		obv:      NewOBV(),
		obvSMA:   NewSMA(cfg.OBVPeriod),
	}, nil
}

// Update ingests a bar and returns the latest computed values.
func (e *Engine) Update(b market.Bar) Snapshot {
	e.bars++
	snap := Snapshot{}

	if bands, ok := e.bb.Update(b.Close); ok {
		snap[BBTop] = bands.Top
		snap[BBMid] = bands.Mid
		snap[BBBot] = bands.Bot
	}
	if v, ok := e.rsi.Update(b.Close); ok {
		snap[RSIValue] = v
	}
	if v, ok := e.macd.Update(b.Close); ok {
		snap[MACDLine] = v.MACD
		if v.SignalReady {
			snap[MACDSignal] = v.Signal
			snap[MACDHist] = v.Hist
		}
	}
	if v, ok := e.smaShort.Update(b.Close); ok {
		snap[SMAShort] = v
	}
	if v, ok := e.smaLong.Update(b.Close); ok {
		snap[SMALong] = v
	}
	if v, ok := e.wmaShort.Update(b.Close); ok {
		snap[WMAShort] = v
	}
	if v, ok := e.wmaLong.Update(b.Close); ok {
		snap[WMALong] = v
	}
	if v, ok := e.obv.Update(b.Close, b.Volume); ok {
		snap[OBVValue] = v
		if s, ok := e.obvSMA.Update(v); ok {
			snap[OBVSMA] = s
		}
	}

	e.prev, e.last = e.last, snap
	return snap
}

// Previous returns the snapshot of the bar before the latest one, or nil.
func (e *Engine) Previous() Snapshot {
	return e.prev
}

// Bars returns how many bars have been ingested.
func (e *Engine) Bars() int {
	return e.bars
}
