package domain

// Direction is the side of a trade decision.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
	None Direction = "NONE" // prediction equals the open price, nothing to do
)

// Opposite returns the side that closes a position opened in direction d.
func (d Direction) Opposite() Direction {
	switch d {
	case Buy:
		return Sell
	case Sell:
		return Buy
	default:
		return None
	}
}

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonStopLoss   CloseReason = "SL"
	CloseReasonTakeProfit CloseReason = "TP"
	CloseReasonMarket     CloseReason = "Market" // Closed by a market order (manual, end of replay)
	CloseReasonUnknown    CloseReason = "Unknown"
)
