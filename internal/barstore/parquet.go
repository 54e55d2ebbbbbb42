package barstore

import (
	"time"

	"github.com/parquet-go/parquet-go"

	"fxPredictBot/internal/domain"
)

// record is the parquet row layout of a bar.
type record struct {
	Timestamp int64   `parquet:"t"` // Unix milliseconds
	Open      float64 `parquet:"o"`
	High      float64 `parquet:"h"`
	Low       float64 `parquet:"l"`
	Close     float64 `parquet:"c"`
	Volume    float64 `parquet:"v"`
	Spread    float64 `parquet:"s"`
}

// ParquetStore keeps bars in a parquet file.
type ParquetStore struct{}

func (ParquetStore) Extension() string { return "parquet" }

func (ParquetStore) Write(path string, bars []domain.Bar) error {
	rows := make([]record, len(bars))
	for i, b := range bars {
		rows[i] = record{
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
			Spread:    b.Spread,
		}
	}
	return parquet.WriteFile(path, rows)
}

func (ParquetStore) Read(path string) ([]domain.Bar, error) {
	rows, err := parquet.ReadFile[record](path)
	if err != nil {
		return nil, err
	}
	bars := make([]domain.Bar, len(rows))
	for i, r := range rows {
		bars[i] = domain.Bar{
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
			Spread: r.Spread,
		}
	}
	return bars, nil
}
