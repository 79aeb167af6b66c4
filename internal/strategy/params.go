package strategy

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"

	"backtest-core/internal/indicators"
)

// ErrInvalidParams is returned for a configuration that cannot be run.
var ErrInvalidParams = errors.New("invalid strategy parameters")

// Strategy kinds shipped with the engine.
const (
	KindBollingerRSIMACD       = "bollinger_rsi_macd"
	KindBollingerRSIMACDStrict = "bollinger_rsi_macd_strict"
	KindWMAOBV                 = "wma_obv"
	KindMACross                = "ma_cross"
)

// Sizing bases for fractional sizing.
const (
	SizeBaseCash  = "cash"
	SizeBaseValue = "value"
)

// Params is the resolved, typed configuration of one backtest run.
type Params struct {
	Kind          string  `json:"kind" yaml:"kind"`
	MAPeriod      int     `json:"maperiod" yaml:"maperiod"`
	DevFactor     float64 `json:"devfactor" yaml:"devfactor"`
	MACDShort     int     `json:"macd_short" yaml:"macd_short"`
	MACDLong      int     `json:"macd_long" yaml:"macd_long"`
	MACDSignal    int     `json:"macd_signal" yaml:"macd_signal"`
	RSIPeriod     int     `json:"rsi_period" yaml:"rsi_period"`
	ShortPeriod   int     `json:"short_period" yaml:"short_period"`
	LongPeriod    int     `json:"long_period" yaml:"long_period"`
	OBVPeriod     int     `json:"obv_period" yaml:"obv_period"`
	RSIOversold   float64 `json:"rsi_oversold" yaml:"rsi_oversold"`
	RSIOverbought float64 `json:"rsi_overbought" yaml:"rsi_overbought"`
	FixedSize     float64 `json:"fixed_size" yaml:"fixed_size"` // > 0 selects fixed sizing
	Fraction      float64 `json:"fraction" yaml:"fraction"`
	SizeBase      string  `json:"size_base" yaml:"size_base"`
	Commission    float64 `json:"commission" yaml:"commission"`
	InitialCash   float64 `json:"initial_cash" yaml:"initial_cash"`
}

// DefaultParams returns the preset for a strategy kind. Unknown kinds get
// the shared defaults and fail validation later.
func DefaultParams(kind string) Params {
	p := Params{
		Kind:          kind,
		MAPeriod:      20,
		DevFactor:     2.0,
		MACDShort:     24,
		MACDLong:      52,
		MACDSignal:    18,
		RSIPeriod:     14,
		ShortPeriod:   50,
		LongPeriod:    150,
		OBVPeriod:     20,
		RSIOversold:   30,
		RSIOverbought: 70,
		Fraction:      0.9,
		SizeBase:      SizeBaseCash,
		Commission:    0.001,
		InitialCash:   1000,
	}
	switch kind {
	case KindBollingerRSIMACD:
		p.RSIOversold, p.RSIOverbought = 35, 65
		p.SizeBase = SizeBaseValue
	case KindBollingerRSIMACDStrict, KindMACross:
		p.ShortPeriod, p.LongPeriod = 25, 100
	case KindWMAOBV:
		p.FixedSize = 100
	}
	return p
}

// Validate rejects parameters that would make a run meaningless.
func (p Params) Validate() error {
	if err := p.IndicatorConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	switch {
	case p.Kind == "":
		return fmt.Errorf("%w: missing kind", ErrInvalidParams)
	case p.FixedSize < 0 || p.FixedSize != math.Trunc(p.FixedSize) || math.IsInf(p.FixedSize, 0):
		return fmt.Errorf("%w: fixed_size=%v must be a whole number of units", ErrInvalidParams, p.FixedSize)
	case p.FixedSize == 0 && !(p.Fraction > 0 && p.Fraction <= 1):
		return fmt.Errorf("%w: fraction=%v outside (0,1]", ErrInvalidParams, p.Fraction)
	case p.FixedSize == 0 && p.SizeBase != SizeBaseCash && p.SizeBase != SizeBaseValue:
		return fmt.Errorf("%w: size_base=%q", ErrInvalidParams, p.SizeBase)
	case !(p.Commission >= 0) || math.IsInf(p.Commission, 0):
		return fmt.Errorf("%w: commission=%v", ErrInvalidParams, p.Commission)
	case !(p.InitialCash > 0) || math.IsInf(p.InitialCash, 0):
		return fmt.Errorf("%w: initial_cash=%v", ErrInvalidParams, p.InitialCash)
	case p.RSIOversold < 0 || p.RSIOverbought > 100 || p.RSIOversold > p.RSIOverbought:
		return fmt.Errorf("%w: rsi thresholds %v/%v", ErrInvalidParams, p.RSIOversold, p.RSIOverbought)
	}
	return nil
}

// IndicatorConfig extracts the indicator windows.
func (p Params) IndicatorConfig() indicators.Config {
	return indicators.Config{
		MAPeriod:    p.MAPeriod,
		DevFactor:   p.DevFactor,
		RSIPeriod:   p.RSIPeriod,
		MACDShort:   p.MACDShort,
		MACDLong:    p.MACDLong,
		MACDSignal:  p.MACDSignal,
		ShortPeriod: p.ShortPeriod,
		LongPeriod:  p.LongPeriod,
		OBVPeriod:   p.OBVPeriod,
	}
}

// Apply overlays raw parameters (as decoded from YAML or JSON) onto p.
func (p Params) Apply(raw map[string]any) (Params, error) {
	if len(raw) == 0 {
		return p, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return p, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	out := p
	if err := json.Unmarshal(data, &out); err != nil {
		return p, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return out, nil
}

// settable lists the names accepted by Set.
var settable = []string{
	"maperiod", "macd_short", "macd_long", "macd_signal", "rsi_period",
	"short_period", "long_period", "obv_period", "devfactor", "rsi_oversold",
	"rsi_overbought", "fixed_size", "fraction", "commission", "initial_cash",
}

// Settable reports whether Set accepts name.
func Settable(name string) bool {
	return slices.Contains(settable, name)
}

// Set assigns one numeric parameter by name, as used by parameter sweeps.
func (p *Params) Set(name string, v float64) error {
	asInt := func(dst *int) error {
		if v != math.Trunc(v) {
			return fmt.Errorf("%w: %s=%v is not an integer", ErrInvalidParams, name, v)
		}
		*dst = int(v)
		return nil
	}
	switch name {
	case "maperiod":
		return asInt(&p.MAPeriod)
	case "macd_short":
		return asInt(&p.MACDShort)
	case "macd_long":
		return asInt(&p.MACDLong)
	case "macd_signal":
		return asInt(&p.MACDSignal)
	case "rsi_period":
		return asInt(&p.RSIPeriod)
	case "short_period":
		return asInt(&p.ShortPeriod)
	case "long_period":
		return asInt(&p.LongPeriod)
	case "obv_period":
		return asInt(&p.OBVPeriod)
	case "devfactor":
		p.DevFactor = v
	case "rsi_oversold":
		p.RSIOversold = v
	case "rsi_overbought":
		p.RSIOverbought = v
	case "fixed_size":
		p.FixedSize = v
	case "fraction":
		p.Fraction = v
	case "commission":
		p.Commission = v
	case "initial_cash":
		p.InitialCash = v
	default:
		return fmt.Errorf("%w: unknown parameter %q", ErrInvalidParams, name)
	}
	return nil
}
