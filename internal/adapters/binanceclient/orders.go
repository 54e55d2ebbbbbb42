package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/adshao/go-binance/v2/futures"

	"fxPredictBot/internal/domain"
	"fxPredictBot/internal/ports"
	"fxPredictBot/internal/risk"
)

const recentOrdersLimit = 50

// prepared is an order that passed local checks, formatted for the API.
type prepared struct {
	quantity   string
	stopLoss   string
	takeProfit string
}

// check runs the venue-side checks that do not need an order: symbol state,
// minimum volume and stop placement against the current book.
// A non-nil error is a transport failure; a refusal comes back as a rejected result.
func (c *Client) check(ctx context.Context, req domain.OrderRequest) (prepared, domain.OrderResult, error) {
	info, err := c.Symbol(ctx, req.Pair)
	if err != nil {
		if errors.Is(err, ports.ErrSymbolNotFound) || errors.Is(err, ports.ErrSymbolNotTradable) {
			return prepared{}, domain.Rejected(domain.RejectSymbolUnavailable, err.Error()), nil
		}
		return prepared{}, domain.OrderResult{}, err
	}

	qty := formatQuantity(req.Volume, info.VolumePrecision)
	vol, _ := strconv.ParseFloat(qty, 64)
	if vol <= 0 || vol < info.MinVolume {
		return prepared{}, domain.Rejected(domain.RejectInvalidVolume,
			fmt.Sprintf("volume %s below minimum %g", qty, info.MinVolume)), nil
	}

	q, err := c.Quote(ctx, req.Pair)
	if err != nil {
		return prepared{}, domain.OrderResult{}, err
	}
	entry := q.Ask
	if req.Direction == domain.Sell {
		entry = q.Bid
	}
	if err := risk.ValidateDecision(domain.TradeDecision{
		Pair:       req.Pair,
		Direction:  req.Direction,
		EntryPrice: entry,
		TakeProfit: req.TakeProfit,
		StopLoss:   req.StopLoss,
		Volume:     vol,
	}); err != nil {
		return prepared{}, domain.Rejected(domain.RejectInvalidStops, err.Error()), nil
	}

	return prepared{
		quantity:   qty,
		stopLoss:   formatPrice(req.StopLoss, info.PricePrecision),
		takeProfit: formatPrice(req.TakeProfit, info.PricePrecision),
	}, domain.OrderResult{Accepted: true}, nil
}

// Validate checks req against the current book without placing anything.
// USDⓈ-M futures have no test-order endpoint, so the check is local.
func (c *Client) Validate(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	_, res, err := c.check(ctx, req)
	return res, err
}

// Submit opens a market position and attaches a stop-market and a take-profit-market
// order closing it. If a protective order cannot be placed the position is closed again
// and the order is reported as rejected.
func (c *Client) Submit(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	op := "Submit"
	p, res, err := c.check(ctx, req)
	if err != nil || !res.Accepted {
		return res, err
	}

	fields := ports.Fields{
		"symbol":     req.Pair,
		"side":       req.Direction,
		"quantity":   p.quantity,
		"stopLoss":   p.stopLoss,
		"takeProfit": p.takeProfit,
		"clientID":   req.ClientID,
		"comment":    req.Comment,
	}

	if err := c.wait(ctx, op); err != nil {
		return domain.OrderResult{}, err
	}
	entry, err := c.futuresClient.NewCreateOrderService().
		Symbol(req.Pair).
		Side(sideFor(req.Direction)).
		Type(futures.OrderTypeMarket).
		Quantity(p.quantity).
		NewClientOrderID(req.ClientID).
		Do(ctx)
	if err != nil {
		return c.placementResult(ctx, err, op)
	}
	fields["orderID"] = entry.OrderID
	c.logger.Info(ctx, "Entry order filled", fields)

	exitSide := sideFor(req.Direction.Opposite())

	if err := c.wait(ctx, op); err != nil {
		return domain.OrderResult{}, err
	}
	sl, err := c.futuresClient.NewCreateOrderService().
		Symbol(req.Pair).
		Side(exitSide).
		Type(futures.OrderTypeStopMarket).
		StopPrice(p.stopLoss).
		ClosePosition(true).
		NewClientOrderID(c.newID()).
		Do(ctx)
	if err != nil {
		c.logger.Error(ctx, err, "Failed to place stop-loss, closing position", fields)
		if cerr := c.closePosition(ctx, req.Pair, exitSide, p.quantity); cerr != nil {
			return domain.OrderResult{}, cerr
		}
		return c.placementResult(ctx, err, op)
	}

	if err := c.wait(ctx, op); err != nil {
		return domain.OrderResult{}, err
	}
	_, err = c.futuresClient.NewCreateOrderService().
		Symbol(req.Pair).
		Side(exitSide).
		Type(futures.OrderTypeTakeProfitMarket).
		StopPrice(p.takeProfit).
		ClosePosition(true).
		NewClientOrderID(c.newID()).
		Do(ctx)
	if err != nil {
		c.logger.Error(ctx, err, "Failed to place take-profit, closing position", fields)
		c.cancelOrderWarn(ctx, req.Pair, sl.OrderID)
		if cerr := c.closePosition(ctx, req.Pair, exitSide, p.quantity); cerr != nil {
			return domain.OrderResult{}, cerr
		}
		return c.placementResult(ctx, err, op)
	}

	c.logger.Info(ctx, op+" successful", fields)
	return domain.Accepted(strconv.FormatInt(entry.OrderID, 10)), nil
}

// placementResult turns a placement error into a rejection when the API refused the
// order, or into a transport error otherwise.
func (c *Client) placementResult(ctx context.Context, err error, op string) (domain.OrderResult, error) {
	// Rejections are reported by the caller, so they only get a debug line here.
	if code := rejectCodeOf(err); code != domain.RejectNone {
		c.logger.Debug(ctx, op+" rejected by venue", map[string]interface{}{"code": string(code), "error": err.Error()})
		return domain.Rejected(code, err.Error()), nil
	}
	return domain.OrderResult{}, fmt.Errorf("%w: %w", ports.ErrOrderPlacementFailed, c.handleError(ctx, err, op))
}

// closePosition sends a reduce-only market order on the exit side.
func (c *Client) closePosition(ctx context.Context, pair string, side futures.SideType, quantity string) error {
	op := "closePosition"
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	_, err := c.futuresClient.NewCreateOrderService().
		Symbol(pair).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(quantity).
		ReduceOnly(true).
		Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Warn(ctx, "Position closed after failed protective order", ports.Fields{"symbol": pair, "side": side, "quantity": quantity})
	return nil
}

// cancelOrder cancels an open order.
func (c *Client) cancelOrder(ctx context.Context, pair string, orderID int64) error {
	op := "CancelOrder"
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	if _, err := c.futuresClient.NewCancelOrderService().Symbol(pair).OrderID(orderID).Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	return nil
}

func (c *Client) cancelOrderWarn(ctx context.Context, pair string, orderID int64) {
	if err := c.cancelOrder(ctx, pair, orderID); err != nil {
		c.logger.Warn(ctx, "Failed to cancel order", ports.Fields{"symbol": pair, "orderID": orderID, "error": err.Error()})
	}
}

// LastClosed returns the most recent exit on the pair, derived from the newest filled
// stop, take-profit or reduce-only order.
func (c *Client) LastClosed(ctx context.Context, pair string) (*domain.ClosedTrade, error) {
	op := "LastClosed"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	orders, err := c.futuresClient.NewListOrdersService().Symbol(pair).Limit(recentOrdersLimit).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].UpdateTime > orders[j].UpdateTime
	})
	for _, o := range orders {
		if reason, ok := closeReasonOf(o); ok {
			trade := translateClosingOrder(o, reason)
			return &trade, nil
		}
	}
	return nil, nil
}
