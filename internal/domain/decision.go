package domain

import "time"

// TradeDecision is the output of one decision cycle. It is derived, never persisted.
type TradeDecision struct {
	Pair       string
	Direction  Direction
	EntryPrice float64 // Bid for SELL, ask for BUY
	TakeProfit float64 // The predicted close
	StopLoss   float64
	Volume     float64

	OpenPrice float64 // Open of the current bar that was compared with the prediction
	Predicted float64
}

// Quote is the current top of book for a pair.
type Quote struct {
	Bid  float64
	Ask  float64
	Time time.Time
}

// SymbolInfo describes the trading conditions of a pair at the venue.
type SymbolInfo struct {
	Name            string
	Tradable        bool
	PricePrecision  int32
	VolumePrecision int32
	MinVolume       float64
}

// ClosedTrade is the most recent exit of a position as reported by the venue.
type ClosedTrade struct {
	Pair       string
	Direction  Direction
	Volume     float64
	EntryPrice float64
	ExitPrice  float64
	PNL        float64
	ClosedAt   time.Time
	Reason     CloseReason
}

// HitStopLoss reports whether the trade was closed by its protective stop.
func (t *ClosedTrade) HitStopLoss() bool {
	return t != nil && t.Reason == CloseReasonStopLoss
}
