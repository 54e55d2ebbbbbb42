package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxPredictBot/config"
	"fxPredictBot/internal/barstore"
	"fxPredictBot/internal/domain"
)

func risingBars(n int) []domain.Bar {
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	for i := range bars {
		open := 1.0 + 0.001*float64(i)
		bars[i] = domain.Bar{
			Time:   t0.Add(time.Duration(i) * time.Minute),
			Open:   open,
			High:   open + 0.0015,
			Low:    open - 0.0005,
			Close:  open + 0.001,
			Volume: 100,
			Spread: 0.0001,
		}
	}
	return bars
}

func testConfig() *config.Config {
	return &config.Config{
		Pairs:                   []string{"EURUSD"},
		Timeframe:               "1m",
		LotSize:                 1,
		LossLotMultiplier:       2,
		RiskMultiplier:          2,
		MaxOpenPositionsPerPair: 1,
		BarsToTrain:             40,
		TestFraction:            0.2,
		SplitSeed:               1,
		Ridge:                   1e-6,
		PollInitialInterval:     time.Millisecond,
		PollMaxInterval:         time.Millisecond,
		PollMaxElapsed:          10 * time.Millisecond,
		LogLevel:                "error",
	}
}

func TestRunPrintsReport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, barstore.Save(filepath.Join(dir, "EURUSD.csv"), risingBars(80)))

	var out bytes.Buffer
	err := run(context.Background(), testConfig(), options{dataDir: dir, dbPath: filepath.Join(dir, "ledger.db"), balance: 1000}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "## Summary")
	assert.Contains(t, out.String(), "submitted")
}

func TestRunMissingData(t *testing.T) {
	err := run(context.Background(), testConfig(), options{dataDir: t.TempDir()}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "no bar file for EURUSD")
}

func TestRunRejectsEarlyStart(t *testing.T) {
	err := run(context.Background(), testConfig(), options{dataDir: t.TempDir(), start: 10}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "BARS_TO_TRAIN=40")
}
