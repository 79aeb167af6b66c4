package market

import (
	"errors"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleBars() []Bar {
	closes := []float64{10, 9, 8, 11, 12}
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{Timestamp: day(2020, 1, i+1), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 100}
	}
	return bars
}

func TestSliceFeedRange(t *testing.T) {
	bars := sampleBars()
	tests := []struct {
		name     string
		from, to time.Time
		want     int
	}{
		{"open range", time.Time{}, time.Time{}, 5},
		{"inclusive bounds", day(2020, 1, 2), day(2020, 1, 4), 3},
		{"from only", day(2020, 1, 5), time.Time{}, 1},
		{"empty", day(2021, 1, 1), time.Time{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Collect(NewSliceFeed(bars, tt.from, tt.to))
			if err != nil {
				t.Fatalf("collect: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("bars=%d, expected %d", len(got), tt.want)
			}
		})
	}
}

func TestSliceFeedResetAndClose(t *testing.T) {
	f := NewSliceFeed(sampleBars(), time.Time{}, time.Time{})
	if _, ok, _ := f.Next(); !ok {
		t.Fatalf("expected first bar")
	}
	_ = f.Close()
	if _, ok, _ := f.Next(); ok {
		t.Fatalf("expected closed feed to be exhausted")
	}
	_ = f.Reset()
	got, _ := Collect(f)
	if len(got) != 5 {
		t.Fatalf("bars after reset=%d, expected 5", len(got))
	}
	if !got[0].Timestamp.Equal(day(2020, 1, 1)) {
		t.Fatalf("first bar=%v, expected 2020-01-01", got[0].Timestamp)
	}
}

func TestValidateNext(t *testing.T) {
	good := Bar{Timestamp: day(2020, 1, 2), Open: 1, High: 1, Low: 1, Close: 1, Volume: 0}
	prev := Bar{Timestamp: day(2020, 1, 1), Open: 1, High: 1, Low: 1, Close: 1}

	tests := []struct {
		name    string
		prev    Bar
		bar     Bar
		wantErr bool
	}{
		{"first bar", Bar{}, good, false},
		{"increasing", prev, good, false},
		{"duplicate timestamp", good, good, true},
		{"going backwards", good, prev, true},
		{"missing timestamp", Bar{}, Bar{Open: 1, High: 1, Low: 1, Close: 1}, true},
		{"missing close", prev, Bar{Timestamp: day(2020, 1, 2), Open: 1, High: 1, Low: 1}, true},
		{"negative volume", prev, Bar{Timestamp: day(2020, 1, 2), Open: 1, High: 1, Low: 1, Close: 1, Volume: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNext(tt.prev, tt.bar)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedBar) {
					t.Fatalf("err=%v, expected ErrMalformedBar", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
		})
	}
}

func TestMockSeriesDeterministic(t *testing.T) {
	a := MockSeries{Seed: 7}.Generate(50)
	b := MockSeries{Seed: 7}.Generate(50)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("bar %d differs: %+v vs %+v", i, a[i], b[i])
		}
		if err := a[i].Validate(); err != nil {
			t.Fatalf("bar %d invalid: %v", i, err)
		}
	}
}
