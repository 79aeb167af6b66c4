package data

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"backtest-core/internal/market"
)

// LoadFile reads bars from a .parquet file or a Yahoo .csv/.txt export,
// keeping those within [from, to].
func LoadFile(path string, from, to time.Time) ([]market.Bar, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		bars, err := readParquetFile(path, from, to)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return bars, nil
	case ".csv", ".txt":
		opts := DefaultCSVOptions()
		opts.From, opts.To = from, to
		return LoadYahooCSVFile(path, opts)
	default:
		return nil, fmt.Errorf("unsupported bar file %q", path)
	}
}
