package ports

import (
	"context"

	"fxPredictBot/internal/domain"
)

// MarketData supplies bars and quotes for a pair.
// Implementations return ErrDataPending while the venue has not delivered the data yet;
// callers are expected to poll.
type MarketData interface {
	// History returns count closed bars, oldest first, ending offset bars before the current one.
	History(ctx context.Context, pair string, tf domain.Timeframe, offset, count int) ([]domain.Bar, error)
	// Current returns the latest, possibly still forming, bar.
	Current(ctx context.Context, pair string, tf domain.Timeframe) (domain.Bar, error)
	// Quote returns the current bid and ask.
	Quote(ctx context.Context, pair string) (domain.Quote, error)
}

// SymbolCatalog resolves trading conditions for a pair.
type SymbolCatalog interface {
	// Symbol returns ErrSymbolNotFound or ErrSymbolNotTradable when the pair cannot be traded.
	Symbol(ctx context.Context, pair string) (domain.SymbolInfo, error)
}
