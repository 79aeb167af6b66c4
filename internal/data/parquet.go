package data

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"backtest-core/internal/market"
)

// ErrInvalidDataset is returned for a dataset name that is not a plain file stem.
var ErrInvalidDataset = errors.New("invalid dataset name")

// BarRecord is the Parquet schema for daily bars.
type BarRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// ParquetStore keeps one Parquet file of daily bars per dataset:
//
//	<DataDir>/daily/<DATASET>.parquet
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a store rooted at dataDir.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// WriteBars merges bars into the dataset file. Bars sharing a timestamp with
// an existing record replace it.
func (s *ParquetStore) WriteBars(_ context.Context, dataset string, bars []market.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	path, err := s.path(dataset)
	if err != nil {
		return err
	}
	existing, _ := parquet.ReadFile[BarRecord](path)

	seen := make(map[int64]BarRecord, len(existing)+len(bars))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, b := range bars {
		seen[b.Timestamp.UnixMilli()] = BarRecord{
			Timestamp: b.Timestamp.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}
	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := parquet.WriteFile(path, merged); err != nil {
		return fmt.Errorf("writing bars for %s: %w", dataset, err)
	}
	return nil
}

// ReadBars returns the dataset's bars within [from, to]. A zero bound leaves
// that side open.
func (s *ParquetStore) ReadBars(_ context.Context, dataset string, from, to time.Time) ([]market.Bar, error) {
	path, err := s.path(dataset)
	if err != nil {
		return nil, err
	}
	bars, err := readParquetFile(path, from, to)
	if err != nil {
		return nil, fmt.Errorf("reading bars for %s: %w", dataset, err)
	}
	return bars, nil
}

func readParquetFile(path string, from, to time.Time) ([]market.Bar, error) {
	records, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, err
	}
	bars := make([]market.Bar, 0, len(records))
	for _, r := range records {
		ts := time.UnixMilli(r.Timestamp).UTC()
		if !from.IsZero() && ts.Before(from) {
			continue
		}
		if !to.IsZero() && ts.After(to) {
			continue
		}
		bars = append(bars, market.Bar{
			Timestamp: ts,
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		})
	}
	return bars, nil
}

// ListDatasets lists the datasets present in the store.
func (s *ParquetStore) ListDatasets(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, "daily"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".parquet"); ok && !e.IsDir() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *ParquetStore) path(dataset string) (string, error) {
	if dataset == "" || strings.Contains(dataset, "..") || strings.ContainsAny(dataset, "/\\:\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDataset, dataset)
	}
	return filepath.Join(s.DataDir, "daily", strings.ToUpper(dataset)+".parquet"), nil
}
