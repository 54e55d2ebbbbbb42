package domain

import "time"

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "OPEN"
	StatusClosed PositionStatus = "CLOSED"
)

// Position is a position held at the paper venue.
type Position struct {
	ID          int64
	ClientID    string
	Pair        string
	Direction   Direction
	Volume      float64
	EntryPrice  float64
	StopLoss    float64
	TakeProfit  float64
	EntryTime   time.Time
	ExitPrice   float64
	ExitTime    time.Time
	Status      PositionStatus
	PNL         float64
	CloseReason CloseReason
}

// ProfitAt returns the profit of the position if it were closed at price.
func (p *Position) ProfitAt(price float64) float64 {
	if p.Direction == Sell {
		return (p.EntryPrice - price) * p.Volume
	}
	return (price - p.EntryPrice) * p.Volume
}

// Settle marks the position closed at price.
func (p *Position) Settle(price float64, at time.Time, reason CloseReason) {
	p.ExitPrice = price
	p.ExitTime = at
	p.Status = StatusClosed
	p.PNL = p.ProfitAt(price)
	p.CloseReason = reason
}

// Trade returns the closed-trade view of a settled position.
func (p *Position) Trade() ClosedTrade {
	return ClosedTrade{
		Pair:       p.Pair,
		Direction:  p.Direction,
		Volume:     p.Volume,
		EntryPrice: p.EntryPrice,
		ExitPrice:  p.ExitPrice,
		PNL:        p.PNL,
		ClosedAt:   p.ExitTime,
		Reason:     p.CloseReason,
	}
}
