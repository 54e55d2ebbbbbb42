package paper

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"fxPredictBot/internal/domain"
	"fxPredictBot/internal/ports"
	"fxPredictBot/internal/risk"
)

// Ledger stores the positions of the paper venue.
type Ledger interface {
	ports.PositionQuery
	ports.TradeHistory
	Create(ctx context.Context, pos *domain.Position) (int64, error)
	Update(ctx context.Context, pos *domain.Position) error
	FindOpen(ctx context.Context, pair string) ([]*domain.Position, error)
}

// Config configures the replay.
type Config struct {
	Series          map[string][]domain.Bar // Bars per pair, oldest first
	Start           int                     // Index of the first bar exposed as current
	MinVolume       float64
	PricePrecision  int32
	VolumePrecision int32
}

// Broker is a replay venue. It exposes bar Start+k as the forming bar after k steps, fills
// market orders at the current quote and settles stops and targets against each bar as
// the replay moves past it.
type Broker struct {
	mu     sync.Mutex
	cfg    Config
	cursor int
	maxLen int
	ledger Ledger
	logger ports.Logger
}

var _ ports.Broker = (*Broker)(nil)

// NewBroker creates a replay venue over the given series.
func NewBroker(cfg Config, ledger Ledger, logger ports.Logger) (*Broker, error) {
	if ledger == nil || logger == nil {
		return nil, errors.New("ledger and logger are required for paper broker")
	}
	if len(cfg.Series) == 0 {
		return nil, errors.New("paper broker needs at least one bar series")
	}
	if cfg.Start < 0 {
		return nil, fmt.Errorf("start index %d cannot be negative", cfg.Start)
	}
	b := &Broker{cfg: cfg, cursor: cfg.Start, ledger: ledger, logger: logger}
	for _, bars := range cfg.Series {
		if len(bars) > b.maxLen {
			b.maxLen = len(bars)
		}
	}
	if cfg.Start >= b.maxLen {
		return nil, fmt.Errorf("start index %d is past the end of every series", cfg.Start)
	}
	return b, nil
}

// Cursor returns the index of the current bar.
func (b *Broker) Cursor() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

func (b *Broker) bars(pair string) ([]domain.Bar, error) {
	bars, ok := b.cfg.Series[pair]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrSymbolNotFound, pair)
	}
	if b.cursor >= len(bars) {
		return nil, fmt.Errorf("%w: replay of %s has ended", ports.ErrSymbolNotTradable, pair)
	}
	return bars, nil
}

// forming returns bar as it looks the moment it opens.
func forming(bar domain.Bar) domain.Bar {
	return domain.Bar{
		Time:   bar.Time,
		Open:   bar.Open,
		High:   bar.Open,
		Low:    bar.Open,
		Close:  bar.Open,
		Spread: bar.Spread,
	}
}

// History returns count bars ending offset bars before the current one.
func (b *Broker) History(ctx context.Context, pair string, tf domain.Timeframe, offset, count int) ([]domain.Bar, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if offset < 0 || count <= 0 {
		return nil, fmt.Errorf("%w: offset %d count %d", ports.ErrInvalidRequest, offset, count)
	}
	bars, err := b.bars(pair)
	if err != nil {
		return nil, err
	}
	end := b.cursor - offset + 1 // exclusive
	start := end - count
	// The replay only moves forward between cycles, so waiting cannot fill the gap.
	if start < 0 {
		return nil, fmt.Errorf("%w: %s has %d bars before the cursor, need %d", ports.ErrInsufficientData, pair, end, count)
	}
	out := make([]domain.Bar, count)
	copy(out, bars[start:end])
	if offset == 0 {
		out[count-1] = forming(out[count-1])
	}
	return out, nil
}

// Current returns the forming bar at the cursor.
func (b *Broker) Current(ctx context.Context, pair string, tf domain.Timeframe) (domain.Bar, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bars, err := b.bars(pair)
	if err != nil {
		return domain.Bar{}, err
	}
	return forming(bars[b.cursor]), nil
}

// Quote prices the book at the open of the current bar.
func (b *Broker) Quote(ctx context.Context, pair string) (domain.Quote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bars, err := b.bars(pair)
	if err != nil {
		return domain.Quote{}, err
	}
	return quoteOf(bars[b.cursor]), nil
}

func quoteOf(bar domain.Bar) domain.Quote {
	return domain.Quote{Bid: bar.Open, Ask: bar.Open + bar.Spread, Time: bar.Time}
}

// Symbol reports every loaded pair as tradable until its series runs out.
func (b *Broker) Symbol(ctx context.Context, pair string) (domain.SymbolInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.bars(pair); err != nil {
		return domain.SymbolInfo{}, err
	}
	return domain.SymbolInfo{
		Name:            pair,
		Tradable:        true,
		PricePrecision:  b.cfg.PricePrecision,
		VolumePrecision: b.cfg.VolumePrecision,
		MinVolume:       b.cfg.MinVolume,
	}, nil
}

// OpenPositions counts open ledger positions of the pair.
func (b *Broker) OpenPositions(ctx context.Context, pair string) (int, error) {
	return b.ledger.OpenPositions(ctx, pair)
}

// LastClosed returns the ledger's most recent exit for the pair.
func (b *Broker) LastClosed(ctx context.Context, pair string) (*domain.ClosedTrade, error) {
	return b.ledger.LastClosed(ctx, pair)
}

// check validates req against the current quote and returns the fill price.
func (b *Broker) check(req domain.OrderRequest) (float64, domain.Bar, domain.OrderResult) {
	bars, err := b.bars(req.Pair)
	if err != nil {
		return 0, domain.Bar{}, domain.Rejected(domain.RejectSymbolUnavailable, err.Error())
	}
	if req.Volume <= 0 || req.Volume < b.cfg.MinVolume {
		return 0, domain.Bar{}, domain.Rejected(domain.RejectInvalidVolume,
			fmt.Sprintf("volume %g below minimum %g", req.Volume, b.cfg.MinVolume))
	}
	bar := bars[b.cursor]
	q := quoteOf(bar)
	fill := q.Ask
	if req.Direction == domain.Sell {
		fill = q.Bid
	}
	d := domain.TradeDecision{
		Pair:       req.Pair,
		Direction:  req.Direction,
		EntryPrice: fill,
		TakeProfit: req.TakeProfit,
		StopLoss:   req.StopLoss,
		Volume:     req.Volume,
	}
	if err := risk.ValidateDecision(d); err != nil {
		return 0, domain.Bar{}, domain.Rejected(domain.RejectInvalidStops, err.Error())
	}
	return fill, bar, domain.OrderResult{Accepted: true}
}

// Validate checks req without opening a position.
func (b *Broker) Validate(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _, res := b.check(req)
	return res, nil
}

// Submit fills req at the current quote and records the position.
func (b *Broker) Submit(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fill, bar, res := b.check(req)
	if !res.Accepted {
		return res, nil
	}
	pos := &domain.Position{
		ClientID:   req.ClientID,
		Pair:       req.Pair,
		Direction:  req.Direction,
		Volume:     req.Volume,
		EntryPrice: fill,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		EntryTime:  bar.Time,
		Status:     domain.StatusOpen,
	}
	id, err := b.ledger.Create(ctx, pos)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("recording paper position: %w", err)
	}
	b.logger.Debug(ctx, "Paper order filled", ports.Fields{
		"pair":      req.Pair,
		"direction": req.Direction,
		"price":     fill,
		"volume":    req.Volume,
	})
	return domain.Accepted(strconv.FormatInt(id, 10)), nil
}

// Step settles open positions against the full current bar and moves the cursor to the
// next bar. It reports false once every series is exhausted.
func (b *Broker) Step(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	open, err := b.ledger.FindOpen(ctx, "")
	if err != nil {
		return false, err
	}
	for _, pos := range open {
		bars := b.cfg.Series[pos.Pair]
		if b.cursor >= len(bars) {
			continue
		}
		bar := bars[b.cursor]
		price, reason, hit := exitOf(pos, bar)
		if !hit {
			continue
		}
		pos.Settle(price, bar.Time, reason)
		if err := b.ledger.Update(ctx, pos); err != nil {
			return false, err
		}
		b.logger.Debug(ctx, "Paper position closed", ports.Fields{
			"pair":   pos.Pair,
			"reason": reason,
			"price":  price,
			"pnl":    pos.PNL,
		})
	}

	b.cursor++
	return b.cursor < b.maxLen, nil
}

// exitOf decides whether bar reaches the stop or the target of pos. The stop is checked
// first, so a bar that spans both closes at the stop. A bar that opens beyond a level
// fills at its open.
func exitOf(pos *domain.Position, bar domain.Bar) (float64, domain.CloseReason, bool) {
	if pos.Direction == domain.Sell {
		// Shorts are bought back at the ask.
		open, high, low := bar.Open+bar.Spread, bar.High+bar.Spread, bar.Low+bar.Spread
		switch {
		case high >= pos.StopLoss:
			return gapFill(open, pos.StopLoss, open >= pos.StopLoss), domain.CloseReasonStopLoss, true
		case low <= pos.TakeProfit:
			return gapFill(open, pos.TakeProfit, open <= pos.TakeProfit), domain.CloseReasonTakeProfit, true
		}
		return 0, "", false
	}
	switch {
	case bar.Low <= pos.StopLoss:
		return gapFill(bar.Open, pos.StopLoss, bar.Open <= pos.StopLoss), domain.CloseReasonStopLoss, true
	case bar.High >= pos.TakeProfit:
		return gapFill(bar.Open, pos.TakeProfit, bar.Open >= pos.TakeProfit), domain.CloseReasonTakeProfit, true
	}
	return 0, "", false
}

func gapFill(open, level float64, gapped bool) float64 {
	if gapped {
		return open
	}
	return level
}

// CloseAll closes every open position at the close of the last settled bar.
func (b *Broker) CloseAll(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	open, err := b.ledger.FindOpen(ctx, "")
	if err != nil {
		return err
	}
	for _, pos := range open {
		bars := b.cfg.Series[pos.Pair]
		i := b.cursor - 1
		if i >= len(bars) {
			i = len(bars) - 1
		}
		if i < 0 {
			continue
		}
		bar := bars[i]
		price := bar.Close
		if pos.Direction == domain.Sell {
			price += bar.Spread
		}
		pos.Settle(price, bar.Time, domain.CloseReasonMarket)
		if err := b.ledger.Update(ctx, pos); err != nil {
			return err
		}
	}
	return nil
}
