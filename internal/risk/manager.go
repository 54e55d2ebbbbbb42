package risk

import (
	"fmt"
	"math"

	"fxPredictBot/internal/domain"
)

// ProtectiveStop returns the stop-loss price for a position entered at reference.
// The stop sits |reference - predicted| * multiplier away from the reference on the
// losing side: above for SELL, below for BUY.
func ProtectiveStop(dir domain.Direction, reference, predicted, multiplier float64) float64 {
	distance := math.Abs(reference-predicted) * multiplier
	if dir == domain.Sell {
		return reference + distance
	}
	return reference - distance
}

// Sizer decides the volume of the next order.
type Sizer struct {
	BaseLot        float64
	LossMultiplier float64 // Applied once after a stop-loss exit, e.g. 2
}

// NewSizer creates a sizer, defaulting the loss multiplier to 2.
func NewSizer(baseLot, lossMultiplier float64) (*Sizer, error) {
	if baseLot <= 0 {
		return nil, fmt.Errorf("base lot must be positive, got %f", baseLot)
	}
	if lossMultiplier == 0 {
		lossMultiplier = 2
	}
	if lossMultiplier < 1 {
		return nil, fmt.Errorf("loss multiplier must be at least 1, got %f", lossMultiplier)
	}
	return &Sizer{BaseLot: baseLot, LossMultiplier: lossMultiplier}, nil
}

// Next returns the volume for the next order given the most recent closed trade.
// A stop-loss exit scales the base lot once; any other exit, or no history, resets to
// the base lot. Consecutive losses do not compound.
func (s *Sizer) Next(last *domain.ClosedTrade) float64 {
	if last.HitStopLoss() {
		return s.BaseLot * s.LossMultiplier
	}
	return s.BaseLot
}

// ValidateDecision checks that a decision is structurally sound before it is sent:
// positive volume, stop on the protective side of entry and target on the profit side.
func ValidateDecision(d domain.TradeDecision) error {
	if d.Volume <= 0 {
		return fmt.Errorf("volume %f must be positive", d.Volume)
	}
	if d.EntryPrice <= 0 {
		return fmt.Errorf("entry price %f must be positive", d.EntryPrice)
	}
	switch d.Direction {
	case domain.Buy:
		if d.StopLoss > d.EntryPrice {
			return fmt.Errorf("buy stop %f above entry %f", d.StopLoss, d.EntryPrice)
		}
		if d.TakeProfit <= d.EntryPrice {
			return fmt.Errorf("buy take-profit %f not above entry %f", d.TakeProfit, d.EntryPrice)
		}
	case domain.Sell:
		if d.StopLoss < d.EntryPrice {
			return fmt.Errorf("sell stop %f below entry %f", d.StopLoss, d.EntryPrice)
		}
		if d.TakeProfit >= d.EntryPrice {
			return fmt.Errorf("sell take-profit %f not below entry %f", d.TakeProfit, d.EntryPrice)
		}
	default:
		return fmt.Errorf("direction %q cannot be traded", d.Direction)
	}
	return nil
}
