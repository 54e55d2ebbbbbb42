package barstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fxPredictBot/internal/domain"
)

// Store reads and writes bar files of one format.
type Store interface {
	Write(path string, bars []domain.Bar) error
	Read(path string) ([]domain.Bar, error)
	Extension() string
}

// New returns the store for a format name (csv, parquet), or nil if it is not supported.
func New(format string) Store {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVStore{}
	case "parquet":
		return ParquetStore{}
	default:
		return nil
	}
}

// ForPath picks the store matching the file extension of path.
func ForPath(path string) (Store, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	s := New(ext)
	if s == nil {
		return nil, fmt.Errorf("unsupported bar file format %q (use .csv or .parquet)", ext)
	}
	return s, nil
}

// Load reads a bar file using the store matching its extension.
func Load(path string) ([]domain.Bar, error) {
	s, err := ForPath(path)
	if err != nil {
		return nil, err
	}
	return s.Read(path)
}

// Save writes a bar file using the store matching its extension.
func Save(path string, bars []domain.Bar) error {
	s, err := ForPath(path)
	if err != nil {
		return err
	}
	return s.Write(path, bars)
}

// LoadDir reads one file per pair from dir, named <PAIR>.csv or <PAIR>.parquet.
func LoadDir(dir string, pairs []string) (map[string][]domain.Bar, error) {
	series := make(map[string][]domain.Bar, len(pairs))
	for _, pair := range pairs {
		var path string
		for _, ext := range []string{"csv", "parquet"} {
			candidate := filepath.Join(dir, pair+"."+ext)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return nil, fmt.Errorf("no bar file for %s in %s", pair, dir)
		}
		bars, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", pair, err)
		}
		series[pair] = bars
	}
	return series, nil
}
