package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOutputPath(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	got := outputPath(options{pair: "EURUSDT", timeframe: "5m"}, start, end)
	assert.Equal(t, filepath.Join("data", "EURUSDT_5m_20240101_to_20240131.csv"), got)

	assert.Equal(t, "x.parquet", outputPath(options{out: "x.parquet"}, start, end))
}

func TestRunRejectsBadOptions(t *testing.T) {
	assert.Error(t, run(context.Background(), options{pair: "EURUSDT", timeframe: "M1", days: 1}))
	assert.Error(t, run(context.Background(), options{pair: "EURUSDT", timeframe: "1m", days: 0}))
	assert.ErrorContains(t, run(context.Background(), options{pair: "EURUSDT", timeframe: "1m", days: 1, out: "bars.json"}), "unsupported")
}
