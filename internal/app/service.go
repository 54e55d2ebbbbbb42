package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"fxPredictBot/config"
	"fxPredictBot/internal/domain"
	"fxPredictBot/internal/metrics"
	"fxPredictBot/internal/ports"
	"fxPredictBot/internal/signal"
)

// Outcome summarizes how a decision cycle ended for one pair.
type Outcome string

const (
	OutcomeSkippedOpenPosition Outcome = "skipped_open_position"
	OutcomeSymbolUnavailable   Outcome = "symbol_unavailable"
	OutcomeDataError           Outcome = "data_error"
	OutcomeNoSignal            Outcome = "no_signal"
	OutcomeSubmitted           Outcome = "submitted"
	OutcomeValidated           Outcome = "validated"
	OutcomeRejected            Outcome = "rejected"
	OutcomeError               Outcome = "error"
)

// PairReport is the result of one decision cycle for a pair.
type PairReport struct {
	Pair     string
	Outcome  Outcome
	Decision *domain.TradeDecision
	Result   *domain.OrderResult
	Attempts int // Orders sent, including resubmissions
	Err      error
}

// TradingService runs the decision loop over the configured pairs.
type TradingService struct {
	cfg    *config.Config
	logger ports.Logger
	broker ports.Broker
	engine *signal.Engine
	poll   PollConfig
	newID  func() string
}

// NewTradingService creates a new application service instance.
func NewTradingService(cfg *config.Config, logger ports.Logger, broker ports.Broker, engine *signal.Engine) (*TradingService, error) {
	if cfg == nil || logger == nil || broker == nil || engine == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	if len(cfg.Pairs) == 0 {
		return nil, fmt.Errorf("configuration Pairs must not be empty")
	}
	if cfg.BarsToTrain < 2 {
		return nil, fmt.Errorf("configuration BarsToTrain must be at least 2")
	}
	if cfg.MaxOpenPositionsPerPair <= 0 {
		return nil, fmt.Errorf("configuration MaxOpenPositionsPerPair must be positive")
	}

	return &TradingService{
		cfg:    cfg,
		logger: logger,
		broker: broker,
		engine: engine,
		poll: PollConfig{
			InitialInterval: cfg.PollInitialInterval,
			MaxInterval:     cfg.PollMaxInterval,
			MaxElapsed:      cfg.PollMaxElapsed,
		},
		newID: uuid.NewString,
	}, nil
}

// RunOnce runs one decision cycle for every configured pair, in order.
// A failing pair is reported and the next pair is still processed.
func (s *TradingService) RunOnce(ctx context.Context) []PairReport {
	reports := make([]PairReport, 0, len(s.cfg.Pairs))
	for _, pair := range s.cfg.Pairs {
		if ctx.Err() != nil {
			break
		}
		rep := s.runPair(ctx, pair)
		s.record(ctx, rep)
		reports = append(reports, rep)
	}
	return reports
}

func (s *TradingService) runPair(ctx context.Context, pair string) PairReport {
	rep := PairReport{Pair: pair}
	fields := ports.Fields{"pair": pair}

	info, err := s.broker.Symbol(ctx, pair)
	if err == nil && !info.Tradable {
		err = fmt.Errorf("%w: %s", ports.ErrSymbolNotTradable, pair)
	}
	if err != nil {
		rep.Err = err
		rep.Outcome = OutcomeError
		if errors.Is(err, ports.ErrSymbolNotFound) || errors.Is(err, ports.ErrSymbolNotTradable) {
			rep.Outcome = OutcomeSymbolUnavailable
		}
		return rep
	}

	open, err := s.broker.OpenPositions(ctx, pair)
	if err != nil {
		rep.Outcome, rep.Err = OutcomeError, fmt.Errorf("counting open positions: %w", err)
		return rep
	}
	if open >= s.cfg.MaxOpenPositionsPerPair {
		s.logger.Debug(ctx, "Position already open, skipping pair", ports.Fields{"pair": pair, "open": open})
		rep.Outcome = OutcomeSkippedOpenPosition
		return rep
	}

	window, err := poll(ctx, s.poll, s.logger, "history", fields, func(ctx context.Context) ([]domain.Bar, error) {
		return s.broker.History(ctx, pair, s.cfg.Timeframe, 1, s.cfg.BarsToTrain)
	})
	if err != nil {
		rep.Outcome, rep.Err = OutcomeDataError, fmt.Errorf("fetching history: %w", err)
		return rep
	}
	current, err := poll(ctx, s.poll, s.logger, "current bar", fields, func(ctx context.Context) (domain.Bar, error) {
		return s.broker.Current(ctx, pair, s.cfg.Timeframe)
	})
	if err != nil {
		rep.Outcome, rep.Err = OutcomeDataError, fmt.Errorf("fetching current bar: %w", err)
		return rep
	}

	model, err := s.engine.Train(ctx, pair, window)
	if err != nil {
		rep.Outcome, rep.Err = OutcomeError, err
		if errors.Is(err, ports.ErrInsufficientData) {
			rep.Outcome = OutcomeDataError
		}
		return rep
	}
	sig, err := s.engine.Evaluate(ctx, pair, model, current)
	if err != nil {
		rep.Outcome, rep.Err = OutcomeError, err
		return rep
	}
	metrics.LastPrediction.WithLabelValues(pair).Set(sig.Predicted)
	if sig.Direction == domain.None {
		rep.Outcome = OutcomeNoSignal
		return rep
	}

	last, err := s.broker.LastClosed(ctx, pair)
	if err != nil {
		rep.Outcome, rep.Err = OutcomeError, fmt.Errorf("reading last closed trade: %w", err)
		return rep
	}

	return s.execute(ctx, rep, sig, last)
}

// execute sends the order for sig. An invalid-stops rejection is retried against a fresh
// quote up to MaxStopRetries times; every other rejection is final.
func (s *TradingService) execute(ctx context.Context, rep PairReport, sig signal.Signal, last *domain.ClosedTrade) PairReport {
	pair := rep.Pair
	fields := ports.Fields{"pair": pair}

	for attempt := 0; attempt <= s.cfg.MaxStopRetries; attempt++ {
		quote, err := poll(ctx, s.poll, s.logger, "quote", fields, func(ctx context.Context) (domain.Quote, error) {
			return s.broker.Quote(ctx, pair)
		})
		if err != nil {
			rep.Outcome, rep.Err = OutcomeDataError, fmt.Errorf("fetching quote: %w", err)
			return rep
		}
		decision, err := s.engine.Decide(ctx, pair, sig, quote, last)
		if err != nil {
			rep.Outcome, rep.Err = OutcomeError, err
			return rep
		}
		rep.Decision = decision

		req := domain.NewOrderRequest(s.newID(), s.cfg.OrderComment, *decision)
		var res domain.OrderResult
		if s.cfg.DryRun {
			res, err = s.broker.Validate(ctx, req)
		} else {
			res, err = s.broker.Submit(ctx, req)
		}
		rep.Attempts++
		if err != nil {
			rep.Outcome, rep.Err = OutcomeError, fmt.Errorf("sending order: %w", err)
			return rep
		}
		rep.Result = &res
		metrics.OrdersTotal.WithLabelValues(pair, string(decision.Direction), resultLabel(res)).Inc()

		if res.Accepted {
			rep.Outcome = OutcomeSubmitted
			if s.cfg.DryRun {
				rep.Outcome = OutcomeValidated
			}
			return rep
		}

		s.logger.Warn(ctx, "Order rejected", ports.Fields{
			"pair":      pair,
			"direction": decision.Direction,
			"code":      res.Code,
			"message":   res.Message,
			"attempt":   attempt + 1,
			"stopLoss":  decision.StopLoss,
			"entry":     decision.EntryPrice,
		})
		rep.Outcome = OutcomeRejected
		rep.Err = fmt.Errorf("%w: %s %s", ports.ErrOrderRejected, res.Code, res.Message)
		if res.Code != domain.RejectInvalidStops {
			return rep
		}
	}
	return rep
}

func (s *TradingService) record(ctx context.Context, rep PairReport) {
	metrics.CyclesTotal.WithLabelValues(rep.Pair, string(rep.Outcome)).Inc()

	fields := ports.Fields{"pair": rep.Pair, "outcome": rep.Outcome}
	if d := rep.Decision; d != nil {
		fields["direction"] = d.Direction
		fields["open"] = d.OpenPrice
		fields["predicted"] = d.Predicted
		fields["entry"] = d.EntryPrice
		fields["takeProfit"] = d.TakeProfit
		fields["stopLoss"] = d.StopLoss
		fields["volume"] = d.Volume
	}
	if rep.Result != nil && rep.Result.OrderID != "" {
		fields["orderID"] = rep.Result.OrderID
	}

	switch rep.Outcome {
	case OutcomeError, OutcomeDataError:
		s.logger.Error(ctx, rep.Err, "Decision cycle failed", fields)
	case OutcomeSymbolUnavailable, OutcomeRejected:
		fields["error"] = rep.Err.Error()
		s.logger.Warn(ctx, "Decision cycle ended without an order", fields)
	default:
		s.logger.Info(ctx, "Decision cycle complete", fields)
	}
}

func resultLabel(res domain.OrderResult) string {
	if res.Accepted {
		return "accepted"
	}
	return string(res.Code)
}
