package domain

// OrderRequest is a market order with its protective and profit targets.
type OrderRequest struct {
	ClientID   string
	Pair       string
	Direction  Direction
	Volume     float64
	Price      float64
	TakeProfit float64
	StopLoss   float64
	Comment    string
}

// NewOrderRequest builds the request that carries out decision d.
func NewOrderRequest(clientID, comment string, d TradeDecision) OrderRequest {
	return OrderRequest{
		ClientID:   clientID,
		Pair:       d.Pair,
		Direction:  d.Direction,
		Volume:     d.Volume,
		Price:      d.EntryPrice,
		TakeProfit: d.TakeProfit,
		StopLoss:   d.StopLoss,
		Comment:    comment,
	}
}

// RejectCode is the closed set of reasons a venue refuses an order.
type RejectCode string

const (
	RejectNone              RejectCode = ""
	RejectInvalidStops      RejectCode = "INVALID_STOPS"
	RejectInvalidVolume     RejectCode = "INVALID_VOLUME"
	RejectNoMoney           RejectCode = "NO_MONEY"
	RejectSymbolUnavailable RejectCode = "SYMBOL_UNAVAILABLE"
	RejectOther             RejectCode = "REJECTED"
)

// OrderResult is the outcome of a submission or a validation.
type OrderResult struct {
	Accepted bool
	Code     RejectCode
	Message  string
	OrderID  string
}

// Accepted returns a successful result for the given venue order id.
func Accepted(orderID string) OrderResult {
	return OrderResult{Accepted: true, OrderID: orderID}
}

// Rejected returns a refused result.
func Rejected(code RejectCode, msg string) OrderResult {
	if code == RejectNone {
		code = RejectOther
	}
	return OrderResult{Code: code, Message: msg}
}
