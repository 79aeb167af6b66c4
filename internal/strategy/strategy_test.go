package strategy

import (
	"errors"
	"testing"
	"time"

	"backtest-core/internal/indicators"
	"backtest-core/internal/market"
	"backtest-core/internal/state"
)

func input(close float64, snap indicators.Snapshot) Input {
	return Input{
		Bar:      market.Bar{Timestamp: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Open: close, High: close, Low: close, Close: close, Volume: 1},
		Snapshot: snap,
		Cash:     1000,
		Value:    1000,
	}
}

func bollingerSnap(rsi, macd, signal float64) indicators.Snapshot {
	return indicators.Snapshot{
		indicators.BBTop: 110, indicators.BBMid: 100, indicators.BBBot: 90,
		indicators.RSIValue: rsi, indicators.MACDLine: macd, indicators.MACDSignal: signal,
	}
}

func TestPercentSizer(t *testing.T) {
	tests := []struct {
		name  string
		sizer PercentSizer
		cash  float64
		value float64
		close float64
		want  float64
	}{
		{"cash based", PercentSizer{0.9, SizeBaseCash}, 1000, 5000, 100, 9},
		{"value based", PercentSizer{0.9, SizeBaseValue}, 10, 1000, 100, 9},
		{"rounds down", PercentSizer{0.9, SizeBaseCash}, 1000, 1000, 99, 9},
		{"too expensive", PercentSizer{0.9, SizeBaseCash}, 1000, 1000, 1000, 0},
		{"no cash", PercentSizer{0.9, SizeBaseCash}, 0, 1000, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := input(tt.close, nil)
			in.Cash, in.Value = tt.cash, tt.value
			if got := tt.sizer.Size(in); got != tt.want {
				t.Fatalf("size=%v, expected %v", got, tt.want)
			}
		})
	}
}

func TestBollingerRSIMACDDecisions(t *testing.T) {
	s := NewRuleStrategy("s1", BollingerRSIMACD{Oversold: 35, Overbought: 65}, PercentSizer{0.9, SizeBaseValue})
	long := state.Position{Size: 5, AvgPrice: 80}

	tests := []struct {
		name    string
		close   float64
		snap    indicators.Snapshot
		pos     state.Position
		pending bool
		want    Action
		size    float64
	}{
		{"buy below band with low rsi", 85, bollingerSnap(30, -1, 0), state.Position{}, false, ActionBuy, 10},
		{"buy below band with bullish macd", 85, bollingerSnap(50, 1, 0), state.Position{}, false, ActionBuy, 10},
		{"no buy without confirmation", 85, bollingerSnap(50, -1, 0), state.Position{}, false, "", 0},
		{"no buy inside band", 95, bollingerSnap(10, 1, 0), state.Position{}, false, "", 0},
		{"no buy while pending", 85, bollingerSnap(30, 1, 0), state.Position{}, true, "", 0},
		{"no buy while warming up", 85, indicators.Snapshot{indicators.RSIValue: 10}, state.Position{}, false, "", 0},
		{"sell above band with high rsi", 115, bollingerSnap(70, 1, 0), long, false, ActionSell, 5},
		{"sell above band when macd not above signal", 115, bollingerSnap(50, 0, 0), long, false, ActionSell, 5},
		{"hold above band with bullish macd", 115, bollingerSnap(50, 1, 0), long, false, "", 0},
		{"no entry logic when holding", 85, bollingerSnap(10, 1, 0), long, false, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := input(tt.close, tt.snap)
			in.Position = tt.pos
			in.Pending = tt.pending
			sig := s.Decide(in)
			if tt.want == "" {
				if sig != nil {
					t.Fatalf("signal=%+v, expected none", sig)
				}
				return
			}
			if sig == nil || sig.Action != tt.want || sig.Size != tt.size {
				t.Fatalf("signal=%+v, expected %s %v", sig, tt.want, tt.size)
			}
			if sig.StrategyID != "s1" || sig.Note == "" {
				t.Fatalf("signal metadata missing: %+v", sig)
			}
		})
	}
}

func TestZeroSizeMeansNoOrder(t *testing.T) {
	s := NewRuleStrategy("s", BollingerRSIMACD{Oversold: 35, Overbought: 65}, PercentSizer{0.9, SizeBaseCash})
	in := input(85, bollingerSnap(30, 1, 0))
	in.Cash = 50
	if sig := s.Decide(in); sig != nil {
		t.Fatalf("signal=%+v, expected none when sizer returns 0", sig)
	}
}

func TestWMAOBVDecisions(t *testing.T) {
	s := NewRuleStrategy("w", WMAOBV{Short: 50, Long: 150, Oversold: 30, Overbought: 70}, FixedSizer{Units: 100})
	snap := func(ws, wl, obv, rsi float64) indicators.Snapshot {
		return indicators.Snapshot{
			indicators.WMAShort: ws, indicators.WMALong: wl, indicators.OBVValue: obv,
			indicators.BBTop: 110, indicators.BBBot: 90, indicators.RSIValue: rsi,
		}
	}
	held := state.Position{Size: 100, AvgPrice: 1}

	tests := []struct {
		name  string
		close float64
		snap  indicators.Snapshot
		pos   state.Position
		want  Action
	}{
		{"trend with volume", 100, snap(2, 1, 10, 50), state.Position{}, ActionBuy},
		{"trend without volume", 100, snap(2, 1, -10, 50), state.Position{}, ""},
		{"oversold below band", 85, snap(1, 2, -10, 20), state.Position{}, ActionBuy},
		{"downtrend with selling volume", 100, snap(1, 2, -10, 50), held, ActionSell},
		{"overbought above band", 115, snap(2, 1, 10, 80), held, ActionSell},
		{"hold", 100, snap(2, 1, 10, 50), held, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := input(tt.close, tt.snap)
			in.Position = tt.pos
			sig := s.Decide(in)
			if tt.want == "" {
				if sig != nil {
					t.Fatalf("signal=%+v, expected none", sig)
				}
				return
			}
			if sig == nil || sig.Action != tt.want || sig.Size != 100 {
				t.Fatalf("signal=%+v, expected %s 100", sig, tt.want)
			}
		})
	}
}

func TestMACrossNeedsPreviousBar(t *testing.T) {
	s := NewRuleStrategy("m", MACross{Short: 2, Long: 4}, FixedSizer{Units: 1})
	cur := indicators.Snapshot{indicators.SMAShort: 11, indicators.SMALong: 10}

	in := input(10, cur)
	if sig := s.Decide(in); sig != nil {
		t.Fatalf("signal=%+v without previous bar", sig)
	}

	in.Previous = indicators.Snapshot{indicators.SMAShort: 9, indicators.SMALong: 10}
	if sig := s.Decide(in); sig == nil || sig.Action != ActionBuy {
		t.Fatalf("signal=%+v, expected golden cross buy", sig)
	}

	in.Position = state.Position{Size: 1}
	in.Previous = indicators.Snapshot{indicators.SMAShort: 11, indicators.SMALong: 10}
	in.Snapshot = indicators.Snapshot{indicators.SMAShort: 9, indicators.SMALong: 10}
	if sig := s.Decide(in); sig == nil || sig.Action != ActionSell {
		t.Fatalf("signal=%+v, expected death cross sell", sig)
	}
}

func TestParamsValidateAndSet(t *testing.T) {
	p := DefaultParams(KindBollingerRSIMACD)
	if err := p.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if p.RSIOversold != 35 || p.SizeBase != SizeBaseValue {
		t.Fatalf("preset=%+v", p)
	}
	if err := p.Set("maperiod", 30); err != nil || p.MAPeriod != 30 {
		t.Fatalf("set maperiod: %v, %d", err, p.MAPeriod)
	}
	if err := p.Set("maperiod", 2.5); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("err=%v, expected ErrInvalidParams", err)
	}
	if err := p.Set("nope", 1); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("err=%v, expected ErrInvalidParams", err)
	}

	bad := []func(*Params){
		func(p *Params) { p.MAPeriod = 0 },
		func(p *Params) { p.RSIPeriod = -3 },
		func(p *Params) { p.Fraction = 1.5 },
		func(p *Params) { p.InitialCash = 0 },
		func(p *Params) { p.Commission = -0.1 },
		func(p *Params) { p.SizeBase = "margin" },
	}
	for i, mod := range bad {
		q := DefaultParams(KindBollingerRSIMACDStrict)
		mod(&q)
		if err := q.Validate(); !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("case %d: err=%v, expected ErrInvalidParams", i, err)
		}
	}
}

func TestFixedSizeMustBeWholeUnits(t *testing.T) {
	tests := []struct {
		name  string
		size  float64
		valid bool
	}{
		{"whole", 100, true},
		{"unset", 0, true},
		{"fractional", 2.5, false},
		{"negative", -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams(KindMACross)
			p.FixedSize = tt.size
			err := p.Validate()
			if tt.valid && err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidParams) {
				t.Fatalf("err=%v, expected ErrInvalidParams", err)
			}
		})
	}

	p := DefaultParams(KindMACross)
	if err := p.Set("fixed_size", 2.5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := p.Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("swept fixed_size=2.5 err=%v, expected ErrInvalidParams", err)
	}
	if got := (FixedSizer{Units: 7.9}).Size(input(10, nil)); got != 7 {
		t.Fatalf("FixedSizer.Size=%v, expected 7", got)
	}
}

func TestParamsApply(t *testing.T) {
	p, err := DefaultParams(KindWMAOBV).Apply(map[string]any{"short_period": 10, "fixed_size": 5})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if p.ShortPeriod != 10 || p.FixedSize != 5 || p.LongPeriod != 150 {
		t.Fatalf("params=%+v", p)
	}
	if _, err := p.Apply(map[string]any{"maperiod": "twenty"}); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("err=%v, expected ErrInvalidParams", err)
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	kinds := r.List()
	want := []string{KindBollingerRSIMACD, KindBollingerRSIMACDStrict, KindMACross, KindWMAOBV}
	if len(kinds) != len(want) {
		t.Fatalf("kinds=%v, expected %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds=%v, expected %v", kinds, want)
		}
	}

	for _, k := range want {
		s, err := r.Build("id-"+k, DefaultParams(k))
		if err != nil {
			t.Fatalf("build %s: %v", k, err)
		}
		if s.ID() != "id-"+k || s.Name() == "" {
			t.Fatalf("strategy %s: id=%q name=%q", k, s.ID(), s.Name())
		}
	}

	if _, err := r.Build("x", DefaultParams("unknown")); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("err=%v, expected ErrInvalidParams", err)
	}
	p := DefaultParams(KindMACross)
	p.ShortPeriod = p.LongPeriod
	if _, err := r.Build("x", p); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("err=%v, expected ErrInvalidParams", err)
	}
}
