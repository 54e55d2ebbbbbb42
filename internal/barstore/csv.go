package barstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"fxPredictBot/internal/domain"
)

var csvHeader = []string{"time", "open", "high", "low", "close", "volume", "spread"}

// CSVStore keeps bars as comma separated rows with an RFC 3339 time column.
type CSVStore struct{}

func (CSVStore) Extension() string { return "csv" }

func (CSVStore) Write(path string, bars []domain.Bar) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range bars {
		err := writer.Write([]string{
			b.Time.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
			strconv.FormatFloat(b.Spread, 'f', -1, 64),
		})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func (CSVStore) Read(path string) ([]domain.Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(csvHeader)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	for i, name := range csvHeader {
		if header[i] != name {
			return nil, fmt.Errorf("%s: column %d is %q, want %q", path, i+1, header[i], name)
		}
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		b, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseRecord(rec []string) (domain.Bar, error) {
	t, err := time.Parse(time.RFC3339Nano, rec[0])
	if err != nil {
		return domain.Bar{}, err
	}
	vals := make([]float64, len(rec)-1)
	for i, s := range rec[1:] {
		if vals[i], err = strconv.ParseFloat(s, 64); err != nil {
			return domain.Bar{}, fmt.Errorf("column %s: %w", csvHeader[i+1], err)
		}
	}
	return domain.Bar{
		Time:   t.UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
		Spread: vals[5],
	}, nil
}
