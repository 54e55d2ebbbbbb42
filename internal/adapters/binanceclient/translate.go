package binanceclient

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"fxPredictBot/internal/domain"
)

const symbolStatusTrading = "TRADING"

func parseField(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s '%s': %w", name, raw, err)
	}
	return v, nil
}

// translateKline converts a futures kline into a bar. Klines carry no spread.
func translateKline(bk *futures.Kline) (domain.Bar, error) {
	if bk == nil {
		return domain.Bar{}, errors.New("received nil historical kline")
	}
	open, err := parseField("open price", bk.Open)
	if err != nil {
		return domain.Bar{}, err
	}
	high, err := parseField("high price", bk.High)
	if err != nil {
		return domain.Bar{}, err
	}
	low, err := parseField("low price", bk.Low)
	if err != nil {
		return domain.Bar{}, err
	}
	cls, err := parseField("close price", bk.Close)
	if err != nil {
		return domain.Bar{}, err
	}
	vol, err := parseField("volume", bk.Volume)
	if err != nil {
		return domain.Bar{}, err
	}

	return domain.Bar{
		Time:   time.UnixMilli(bk.OpenTime).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  cls,
		Volume: vol,
	}, nil
}

func translateBookTicker(t *futures.BookTicker) (domain.Quote, error) {
	if t == nil {
		return domain.Quote{}, errors.New("received nil book ticker")
	}
	bid, err := parseField("bid price", t.BidPrice)
	if err != nil {
		return domain.Quote{}, err
	}
	ask, err := parseField("ask price", t.AskPrice)
	if err != nil {
		return domain.Quote{}, err
	}
	return domain.Quote{Bid: bid, Ask: ask, Time: time.Now().UTC()}, nil
}

func translateSymbol(s futures.Symbol) domain.SymbolInfo {
	info := domain.SymbolInfo{
		Name:            s.Symbol,
		Tradable:        string(s.Status) == symbolStatusTrading,
		PricePrecision:  int32(s.PricePrecision),
		VolumePrecision: int32(s.QuantityPrecision),
	}
	if lot := s.LotSizeFilter(); lot != nil {
		info.MinVolume, _ = strconv.ParseFloat(lot.MinQuantity, 64)
	}
	return info
}

// closeReasonOf classifies the filled order that closed a position.
func closeReasonOf(o *futures.Order) (domain.CloseReason, bool) {
	if o == nil || o.Status != futures.OrderStatusTypeFilled {
		return "", false
	}
	typ := o.OrigType
	if typ == "" {
		typ = o.Type
	}
	switch typ {
	case futures.OrderTypeStopMarket, futures.OrderTypeStop:
		return domain.CloseReasonStopLoss, true
	case futures.OrderTypeTakeProfitMarket, futures.OrderTypeTakeProfit:
		return domain.CloseReasonTakeProfit, true
	case futures.OrderTypeMarket, futures.OrderTypeLimit:
		if o.ReduceOnly || o.ClosePosition {
			return domain.CloseReasonMarket, true
		}
	}
	return "", false
}

// translateClosingOrder builds the closed trade for an exit order. The exit side is the
// opposite of the position's direction.
func translateClosingOrder(o *futures.Order, reason domain.CloseReason) domain.ClosedTrade {
	exit, _ := strconv.ParseFloat(o.AvgPrice, 64)
	vol, _ := strconv.ParseFloat(o.ExecutedQuantity, 64)
	return domain.ClosedTrade{
		Pair:      o.Symbol,
		Direction: sideOf(o.Side).Opposite(),
		Volume:    vol,
		ExitPrice: exit,
		ClosedAt:  time.UnixMilli(o.UpdateTime).UTC(),
		Reason:    reason,
	}
}

func sideOf(s futures.SideType) domain.Direction {
	switch s {
	case futures.SideTypeBuy:
		return domain.Buy
	case futures.SideTypeSell:
		return domain.Sell
	default:
		return domain.None
	}
}

func sideFor(d domain.Direction) futures.SideType {
	if d == domain.Sell {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

// formatPrice rounds a price to the symbol's precision.
func formatPrice(v float64, precision int32) string {
	return decimal.NewFromFloat(v).Round(precision).StringFixed(precision)
}

// formatQuantity truncates a quantity to the symbol's precision so that it never
// exceeds the requested volume.
func formatQuantity(v float64, precision int32) string {
	return decimal.NewFromFloat(v).Truncate(precision).StringFixed(precision)
}

// rejectCodeOf maps an order placement failure to a venue reject code.
// Errors that did not come from the API return RejectNone.
func rejectCodeOf(err error) domain.RejectCode {
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		return domain.RejectNone
	}
	switch apiErr.Code {
	case -2021:
		return domain.RejectInvalidStops
	case -2019, -2018:
		return domain.RejectNoMoney
	case -4003, -4005, -1111, -4164:
		return domain.RejectInvalidVolume
	case -1121, -4140:
		return domain.RejectSymbolUnavailable
	default:
		return domain.RejectOther
	}
}
