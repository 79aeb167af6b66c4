package indicators

import (
	"math"
	"testing"
)

const eps = 1e-9

type reading struct {
	v  float64
	ok bool
}

func checkReadings(t *testing.T, got, want []reading) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("readings=%d, expected %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ok != want[i].ok {
			t.Fatalf("bar %d ready=%v, expected %v", i, got[i].ok, want[i].ok)
		}
		if want[i].ok && math.Abs(got[i].v-want[i].v) > eps {
			t.Fatalf("bar %d value=%v, expected %v", i, got[i].v, want[i].v)
		}
	}
}

func TestSMA(t *testing.T) {
	s := NewSMA(3)
	var got []reading
	for _, c := range []float64{10, 9, 8, 11, 12} {
		v, ok := s.Update(c)
		got = append(got, reading{v, ok})
	}
	checkReadings(t, got, []reading{{0, false}, {0, false}, {9, true}, {28.0 / 3, true}, {31.0 / 3, true}})
}

func TestWMA(t *testing.T) {
	m := NewWMA(3)
	var got []reading
	for _, c := range []float64{1, 2, 3, 4} {
		v, ok := m.Update(c)
		got = append(got, reading{v, ok})
	}
	checkReadings(t, got, []reading{{0, false}, {0, false}, {14.0 / 6, true}, {20.0 / 6, true}})
}

func TestEMASeededWithSMA(t *testing.T) {
	e := NewEMA(3)
	var got []reading
	for _, c := range []float64{1, 2, 3, 4, 4} {
		v, ok := e.Update(c)
		got = append(got, reading{v, ok})
	}
	checkReadings(t, got, []reading{{0, false}, {0, false}, {2, true}, {3, true}, {3.5, true}})
}

func TestBollingerPopulationStdDev(t *testing.T) {
	b := NewBollinger(3, 2)
	if _, ok := b.Update(1); ok {
		t.Fatalf("expected warm-up")
	}
	b.Update(2)
	bands, ok := b.Update(3)
	if !ok {
		t.Fatalf("expected bands after 3 bars")
	}
	sd := math.Sqrt(2.0 / 3.0)
	if math.Abs(bands.Mid-2) > eps || math.Abs(bands.Top-(2+2*sd)) > eps || math.Abs(bands.Bot-(2-2*sd)) > eps {
		t.Fatalf("bands=%+v, expected mid 2 ± %v", bands, 2*sd)
	}
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   []reading
	}{
		{
			name:   "wilder smoothing",
			closes: []float64{1, 2, 3, 2},
			want:   []reading{{0, false}, {0, false}, {100, true}, {50, true}},
		},
		{
			name:   "only losses",
			closes: []float64{5, 4, 3},
			want:   []reading{{0, false}, {0, false}, {0, true}},
		},
		{
			name:   "flat series has no loss",
			closes: []float64{5, 5, 5},
			want:   []reading{{0, false}, {0, false}, {100, true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRSI(2)
			var got []reading
			for _, c := range tt.closes {
				v, ok := r.Update(c)
				if ok && (v < 0 || v > 100) {
					t.Fatalf("rsi=%v out of range", v)
				}
				got = append(got, reading{v, ok})
			}
			checkReadings(t, got, tt.want)
		})
	}
}

func TestMACDWarmup(t *testing.T) {
	m := NewMACD(2, 3, 2)
	closes := []float64{1, 2, 3, 4, 5}
	var lines, signals []reading
	for _, c := range closes {
		v, ok := m.Update(c)
		lines = append(lines, reading{v.MACD, ok})
		signals = append(signals, reading{v.Signal, ok && v.SignalReady})
		if v.SignalReady && math.Abs(v.Hist-(v.MACD-v.Signal)) > eps {
			t.Fatalf("hist=%v, expected macd-signal", v.Hist)
		}
	}
	checkReadings(t, lines, []reading{{0, false}, {0, false}, {0.5, true}, {0.5, true}, {0.5, true}})
	checkReadings(t, signals, []reading{{0, false}, {0, false}, {0, false}, {0.5, true}, {0.5, true}})
}

func TestMACDSignalSmoothing(t *testing.T) {
	m := NewMACD(2, 3, 2)
	closes := []float64{1, 2, 4, 3, 6, 5}
	// EMA(2) = 3/2, 19/6, 55/18, 271/54, 811/162; EMA(3) = 7/3, 8/3, 13/3, 14/3.
	wantMACD := []reading{{0, false}, {0, false}, {5.0 / 6, true}, {7.0 / 18, true}, {37.0 / 54, true}, {55.0 / 162, true}}
	wantSignal := []reading{{0, false}, {0, false}, {0, false}, {11.0 / 18, true}, {107.0 / 162, true}, {217.0 / 486, true}}
	wantHist := []reading{{0, false}, {0, false}, {0, false}, {-2.0 / 9, true}, {2.0 / 81, true}, {-26.0 / 243, true}}

	var lines, signals, hists []reading
	for _, c := range closes {
		v, ok := m.Update(c)
		lines = append(lines, reading{v.MACD, ok})
		signals = append(signals, reading{v.Signal, ok && v.SignalReady})
		hists = append(hists, reading{v.Hist, ok && v.SignalReady})
	}
	checkReadings(t, lines, wantMACD)
	checkReadings(t, signals, wantSignal)
	checkReadings(t, hists, wantHist)
}

func TestOBV(t *testing.T) {
	o := NewOBV()
	closes := []float64{10, 11, 11, 9}
	vols := []float64{100, 200, 300, 400}
	var got []reading
	for i := range closes {
		v, ok := o.Update(closes[i], vols[i])
		got = append(got, reading{v, ok})
	}
	checkReadings(t, got, []reading{{0, false}, {200, true}, {200, true}, {-200, true}})
}
