package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"fxPredictBot/internal/domain"
	"fxPredictBot/internal/ports"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	maxKlineLimit  = 1500
	symbolCacheTTL = time.Hour
)

// Client implements ports.Broker over Binance USDⓈ-M futures using the go-binance library.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
	limiter       *rate.Limiter
	newID         func() string

	mu        sync.Mutex
	symbols   map[string]futures.Symbol
	symbolsAt time.Time
}

var _ ports.Broker = (*Client)(nil)

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey            string
	SecretKey         string
	UseTestnet        bool
	BaseURL           string // Overrides the production/testnet URL when set
	RequestsPerSecond int
	Logger            ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using global futures.UseTestnet
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", ports.Fields{"baseURL": client.BaseURL, "testnet": cfg.UseTestnet})

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
		limiter:       rate.NewLimiter(rate.Limit(rps), rps),
		newID:         uuid.NewString,
	}, nil
}

// wait blocks until the rate limiter admits another request.
func (c *Client) wait(ctx context.Context, op string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: waiting for rate limiter: %w: %w", op, ports.ErrContextCanceled, err)
	}
	return nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := ports.Fields{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1001: // Internal error; unable to process your request
			mappedErr = ports.ErrExchangeUnavailable
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022, -2014, -2015: // Bad signature, API-key format or permissions
			mappedErr = ports.ErrAuthenticationFailed
		case -1121: // Invalid symbol
			mappedErr = ports.ErrSymbolNotFound
		case -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1125, -1127, -1128, -1130:
			mappedErr = ports.ErrInvalidRequest
		case -2010, -2022: // New order or reduce-only order rejected
			mappedErr = ports.ErrOrderRejected
		case -2011: // Cancel order rejected
			mappedErr = ports.ErrOrderCancelFailed
		case -2013: // Order does not exist
			mappedErr = ports.ErrOrderNotFound
		case -2019, -3005, -4047: // Margin or balance insufficient
			mappedErr = ports.ErrInsufficientFunds
		case -2021: // Order would immediately trigger
			mappedErr = ports.ErrInvalidStops
		case -4003, -4005, -4014, -4164: // Quantity, price or notional out of range
			mappedErr = ports.ErrInvalidRequest
		case -4044: // Position not found
			mappedErr = ports.ErrNotFound
		default:
			mappedErr = ports.ErrUnknown
		}
		c.logger.Error(ctx, err, operation+" failed with API error", fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, operation+" failed", fields)
	return finalErr
}

// SetServerTime synchronizes the client's time with the server's time.
func (c *Client) SetServerTime(ctx context.Context) error {
	op := "SetServerTime"
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	if _, err := c.futuresClient.NewSetServerTimeService().Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// recentKlines returns the newest n klines, oldest first, paging back past the
// per-request limit.
func (c *Client) recentKlines(ctx context.Context, op, symbol, interval string, n int) ([]*futures.Kline, error) {
	var out []*futures.Kline
	var endTime int64
	for len(out) < n {
		batch := min(n-len(out), maxKlineLimit)
		if err := c.wait(ctx, op); err != nil {
			return nil, err
		}
		svc := c.futuresClient.NewKlinesService().Symbol(symbol).Interval(interval).Limit(batch)
		if endTime > 0 {
			svc = svc.EndTime(endTime)
		}
		klines, err := svc.Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		out = append(klines, out...)
		endTime = klines[0].OpenTime - 1
		if len(klines) < batch {
			break
		}
	}
	return out, nil
}

// History returns count closed bars ending offset bars before the forming one.
// Fewer bars than requested is reported as ports.ErrDataPending.
func (c *Client) History(ctx context.Context, pair string, tf domain.Timeframe, offset, count int) ([]domain.Bar, error) {
	op := "History"
	if offset < 0 || count <= 0 {
		return nil, fmt.Errorf("%s: %w: offset %d count %d", op, ports.ErrInvalidRequest, offset, count)
	}
	klines, err := c.recentKlines(ctx, op, pair, string(tf), count+offset)
	if err != nil {
		return nil, err
	}
	if len(klines) < count+offset {
		return nil, fmt.Errorf("%s: %w: %s returned %d of %d bars", op, ports.ErrDataPending, pair, len(klines), count+offset)
	}
	klines = klines[len(klines)-offset-count : len(klines)-offset]

	bars := make([]domain.Bar, len(klines))
	for i, k := range klines {
		if bars[i], err = translateKline(k); err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline: %w", err), op)
		}
	}
	return bars, nil
}

// Current returns the bar that is still forming.
func (c *Client) Current(ctx context.Context, pair string, tf domain.Timeframe) (domain.Bar, error) {
	op := "Current"
	klines, err := c.recentKlines(ctx, op, pair, string(tf), 1)
	if err != nil {
		return domain.Bar{}, err
	}
	if len(klines) == 0 {
		return domain.Bar{}, fmt.Errorf("%s: %w: no bar for %s", op, ports.ErrDataPending, pair)
	}
	bar, err := translateKline(klines[len(klines)-1])
	if err != nil {
		return domain.Bar{}, c.handleError(ctx, err, op)
	}
	return bar, nil
}

// HistoryRange fetches all bars of a pair between start and end.
func (c *Client) HistoryRange(ctx context.Context, pair string, tf domain.Timeframe, start, end time.Time) ([]domain.Bar, error) {
	op := "HistoryRange"
	var bars []domain.Bar
	from := start

	for {
		if err := c.wait(ctx, op); err != nil {
			return nil, err
		}
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(pair).
			Interval(string(tf)).
			StartTime(from.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(maxKlineLimit).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, k := range klines {
			bar, err := translateKline(k)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline range: %w", err), op)
			}
			bars = append(bars, bar)
		}
		last := klines[len(klines)-1]
		from = time.UnixMilli(last.CloseTime + 1)
		if from.After(end) || len(klines) < maxKlineLimit {
			break
		}
	}

	return bars, nil
}

// Quote returns the best bid and ask.
func (c *Client) Quote(ctx context.Context, pair string) (domain.Quote, error) {
	op := "Quote"
	if err := c.wait(ctx, op); err != nil {
		return domain.Quote{}, err
	}
	tickers, err := c.futuresClient.NewListBookTickersService().Symbol(pair).Do(ctx)
	if err != nil {
		return domain.Quote{}, c.handleError(ctx, err, op)
	}
	for _, t := range tickers {
		if t.Symbol != pair {
			continue
		}
		q, err := translateBookTicker(t)
		if err != nil {
			return domain.Quote{}, c.handleError(ctx, err, op)
		}
		if q.Bid <= 0 || q.Ask <= 0 {
			return domain.Quote{}, fmt.Errorf("%s: %w: empty book for %s", op, ports.ErrDataPending, pair)
		}
		return q, nil
	}
	return domain.Quote{}, fmt.Errorf("%s: %w: no book ticker for %s", op, ports.ErrDataPending, pair)
}

// exchangeSymbol looks up a symbol in the cached exchange info, refreshing it hourly.
func (c *Client) exchangeSymbol(ctx context.Context, pair string) (futures.Symbol, error) {
	op := "Symbol"
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.symbols == nil || time.Since(c.symbolsAt) > symbolCacheTTL {
		if err := c.wait(ctx, op); err != nil {
			return futures.Symbol{}, err
		}
		info, err := c.futuresClient.NewExchangeInfoService().Do(ctx)
		if err != nil {
			return futures.Symbol{}, c.handleError(ctx, err, op)
		}
		c.symbols = make(map[string]futures.Symbol, len(info.Symbols))
		for _, s := range info.Symbols {
			c.symbols[s.Symbol] = s
		}
		c.symbolsAt = time.Now()
	}
	s, ok := c.symbols[pair]
	if !ok {
		return futures.Symbol{}, fmt.Errorf("%s: %w: %s", op, ports.ErrSymbolNotFound, pair)
	}
	return s, nil
}

// Symbol returns trading conditions for a pair. A symbol whose status is not TRADING
// yields ports.ErrSymbolNotTradable along with its info.
func (c *Client) Symbol(ctx context.Context, pair string) (domain.SymbolInfo, error) {
	s, err := c.exchangeSymbol(ctx, pair)
	if err != nil {
		return domain.SymbolInfo{}, err
	}
	info := translateSymbol(s)
	if !info.Tradable {
		return info, fmt.Errorf("Symbol: %w: %s has status %s", ports.ErrSymbolNotTradable, pair, s.Status)
	}
	return info, nil
}

// OpenPositions counts the non-empty positions held on the pair.
func (c *Client) OpenPositions(ctx context.Context, pair string) (int, error) {
	op := "OpenPositions"
	if err := c.wait(ctx, op); err != nil {
		return 0, err
	}
	positions, err := c.futuresClient.NewGetPositionRiskService().Symbol(pair).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	n := 0
	for _, p := range positions {
		if p.Symbol != pair {
			continue
		}
		amt, err := strconv.ParseFloat(p.PositionAmt, 64)
		if err != nil {
			return 0, c.handleError(ctx, fmt.Errorf("could not parse position amount '%s': %w", p.PositionAmt, err), op)
		}
		if amt != 0 {
			n++
		}
	}
	return n, nil
}
