package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Bar represents a single OHLC sample for one timeframe interval.
type Bar struct {
	Time   time.Time // Start time of the interval
	Open   float64   // Opening price
	High   float64   // Highest price
	Low    float64   // Lowest price
	Close  float64   // Closing price
	Volume float64   // Traded volume (tick or real volume, venue dependent)
	Spread float64   // Ask minus bid at the bar, in price units (0 when the venue does not report it)
}

// Timeframe is the sampling granularity of bars, e.g. "1m", "30m", "1h".
type Timeframe string

// Duration returns the length of one bar of the timeframe.
func (tf Timeframe) Duration() (time.Duration, error) {
	s := string(tf)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid timeframe %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", s)
	}
	unit := time.Duration(0)
	switch s[len(s)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid timeframe unit in %q", s)
	}
	return time.Duration(n) * unit, nil
}

// String returns the timeframe as written in configuration.
func (tf Timeframe) String() string {
	return string(tf)
}
