package ports

import (
	"context"

	"fxPredictBot/internal/domain"
)

// PositionQuery reports open positions held at the venue.
type PositionQuery interface {
	OpenPositions(ctx context.Context, pair string) (int, error)
}

// TradeHistory reports exits of past positions.
type TradeHistory interface {
	// LastClosed returns the most recent closed trade for the pair, or nil, nil if there is none.
	LastClosed(ctx context.Context, pair string) (*domain.ClosedTrade, error)
}

// OrderSink executes orders.
// A venue refusal is reported through OrderResult, not through the error, which is reserved
// for transport and infrastructure failures.
type OrderSink interface {
	// Submit sends the order to the venue.
	Submit(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
	// Validate checks the order against the venue without executing it.
	Validate(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
}

// Broker groups every venue capability the trading service needs.
type Broker interface {
	MarketData
	SymbolCatalog
	PositionQuery
	TradeHistory
	OrderSink
}
