package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"backtest-core/internal/market"
)

// ErrBadCSV is returned for a CSV file that cannot be read as daily bars.
var ErrBadCSV = errors.New("malformed bar csv")

// CSVOptions controls how Yahoo Finance CSV rows are turned into bars.
type CSVOptions struct {
	From, To time.Time // inclusive; zero leaves the side open
	// AdjustClose rescales open, high and low by adj_close/close and
	// replaces close with the adjusted close.
	AdjustClose bool
	// Decimals rounds prices after adjustment when positive.
	Decimals int32
}

// DefaultCSVOptions matches how Yahoo exports are usually consumed:
// adjusted prices rounded to cents.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{AdjustClose: true, Decimals: 2}
}

// LoadYahooCSVFile reads a Yahoo Finance daily CSV export from disk.
func LoadYahooCSVFile(path string, opts CSVOptions) ([]market.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bars, err := LoadYahooCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// LoadYahooCSV parses "Date,Open,High,Low,Close,Adj Close,Volume" rows.
// Rows containing "null" (holidays in Yahoo exports) are skipped.
func LoadYahooCSV(r io.Reader, opts CSVOptions) ([]market.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrBadCSV, err)
	}
	cols, err := columns(header)
	if err != nil {
		return nil, err
	}

	var bars []market.Bar
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrBadCSV, line, err)
		}
		if hasNull(rec) {
			continue
		}
		b, err := parseRow(rec, cols, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrBadCSV, line, err)
		}
		if !opts.From.IsZero() && b.Timestamp.Before(opts.From) {
			continue
		}
		if !opts.To.IsZero() && b.Timestamp.After(opts.To) {
			continue
		}
		bars = append(bars, b)
	}
	return bars, nil
}

type csvColumns struct {
	date, open, high, low, close, adj, volume int
}

func columns(header []string) (csvColumns, error) {
	c := csvColumns{-1, -1, -1, -1, -1, -1, -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date":
			c.date = i
		case "open":
			c.open = i
		case "high":
			c.high = i
		case "low":
			c.low = i
		case "close":
			c.close = i
		case "adj close", "adj_close", "adjclose":
			c.adj = i
		case "volume":
			c.volume = i
		}
	}
	if c.date < 0 || c.open < 0 || c.high < 0 || c.low < 0 || c.close < 0 || c.volume < 0 {
		return c, fmt.Errorf("%w: header %v", ErrBadCSV, header)
	}
	return c, nil
}

func hasNull(rec []string) bool {
	for _, f := range rec {
		if strings.EqualFold(strings.TrimSpace(f), "null") {
			return true
		}
	}
	return false
}

func parseRow(rec []string, c csvColumns, opts CSVOptions) (market.Bar, error) {
	field := func(i int) (float64, error) {
		if i >= len(rec) {
			return 0, fmt.Errorf("missing column %d", i)
		}
		return strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
	}
	if c.date >= len(rec) {
		return market.Bar{}, fmt.Errorf("missing date")
	}
	ts, err := time.Parse(time.DateOnly, strings.TrimSpace(rec[c.date]))
	if err != nil {
		return market.Bar{}, err
	}

	var vals [5]float64
	for i, idx := range []int{c.open, c.high, c.low, c.close, c.volume} {
		v, err := field(idx)
		if err != nil {
			return market.Bar{}, err
		}
		vals[i] = v
	}
	b := market.Bar{Timestamp: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}

	if opts.AdjustClose && c.adj >= 0 {
		adj, err := field(c.adj)
		if err != nil {
			return market.Bar{}, err
		}
		if b.Close != 0 && adj != 0 {
			factor := b.Close / adj
			b.Open /= factor
			b.High /= factor
			b.Low /= factor
			b.Close = adj
			b.Volume *= factor
		}
	}
	if opts.Decimals > 0 {
		b.Open = roundTo(b.Open, opts.Decimals)
		b.High = roundTo(b.High, opts.Decimals)
		b.Low = roundTo(b.Low, opts.Decimals)
		b.Close = roundTo(b.Close, opts.Decimals)
	}
	return b, nil
}

func roundTo(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
