package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeframeDuration(t *testing.T) {
	tests := []struct {
		tf      Timeframe
		want    time.Duration
		wantErr bool
	}{
		{"1m", time.Minute, false},
		{"30m", 30 * time.Minute, false},
		{"4h", 4 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"m", 0, true},
		{"0m", 0, true},
		{"5x", 0, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.tf), func(t *testing.T) {
			got, err := tt.tf.Duration()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirectionOpposite(t *testing.T) {
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
	assert.Equal(t, None, None.Opposite())
}

func TestClosedTradeHitStopLoss(t *testing.T) {
	var nilTrade *ClosedTrade
	assert.False(t, nilTrade.HitStopLoss())
	assert.True(t, (&ClosedTrade{Reason: CloseReasonStopLoss}).HitStopLoss())
	assert.False(t, (&ClosedTrade{Reason: CloseReasonTakeProfit}).HitStopLoss())
}

func TestRejectedDefaultsCode(t *testing.T) {
	res := Rejected(RejectNone, "nope")
	assert.False(t, res.Accepted)
	assert.Equal(t, RejectOther, res.Code)
	assert.True(t, Accepted("42").Accepted)
}
