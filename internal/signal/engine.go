package signal

import (
	"context"
	"errors"
	"fmt"
	"math"

	"fxPredictBot/internal/domain"
	"fxPredictBot/internal/ports"
	"fxPredictBot/internal/risk"
)

// Config holds the model and decision parameters of the engine.
type Config struct {
	Lookahead      int
	TestFraction   float64
	Seed           int64
	RiskMultiplier float64
}

// Engine turns a bar window into a trade decision. It keeps no state between cycles:
// every Train call fits a fresh predictor.
type Engine struct {
	cfg       Config
	regressor ports.Regressor
	sizer     *risk.Sizer
	logger    ports.Logger
}

// Model is a predictor trained on one window along with its held-out metrics.
type Model struct {
	Predictor   ports.Predictor
	TrainRows   int
	TestRows    int
	HoldoutR2   float64
	HoldoutRMSE float64
}

// Signal is the result of comparing a prediction with the current open.
type Signal struct {
	Direction domain.Direction
	OpenPrice float64
	Predicted float64
}

// NewEngine creates an engine.
func NewEngine(cfg Config, regressor ports.Regressor, sizer *risk.Sizer, logger ports.Logger) (*Engine, error) {
	if regressor == nil || sizer == nil || logger == nil {
		return nil, errors.New("regressor, sizer and logger are required")
	}
	if cfg.RiskMultiplier <= 0 {
		return nil, fmt.Errorf("risk multiplier must be positive, got %f", cfg.RiskMultiplier)
	}
	return &Engine{cfg: cfg, regressor: regressor, sizer: sizer, logger: logger}, nil
}

// Train builds the dataset from window, fits a predictor on the training partition and
// scores it on the held-out rows.
func (e *Engine) Train(ctx context.Context, pair string, window []domain.Bar) (*Model, error) {
	ds, err := BuildDataset(window, e.cfg.Lookahead)
	if err != nil {
		return nil, err
	}
	trainIdx, testIdx, err := Partition(ds.Len(), e.cfg.TestFraction, e.cfg.Seed)
	if err != nil {
		return nil, err
	}
	xTrain, yTrain := ds.Subset(trainIdx)
	predictor, err := e.regressor.Fit(xTrain, yTrain)
	if err != nil {
		return nil, fmt.Errorf("fitting model for %s: %w", pair, err)
	}

	model := &Model{Predictor: predictor, TrainRows: len(trainIdx), TestRows: len(testIdx)}
	xTest, yTest := ds.Subset(testIdx)
	model.HoldoutR2, model.HoldoutRMSE, err = Score(predictor, xTest, yTest)
	if err != nil {
		return nil, fmt.Errorf("scoring model for %s: %w", pair, err)
	}

	e.logger.Debug(ctx, "Model trained", ports.Fields{
		"pair":        pair,
		"trainRows":   model.TrainRows,
		"testRows":    model.TestRows,
		"holdoutR2":   finiteOrZero(model.HoldoutR2),
		"holdoutRMSE": finiteOrZero(model.HoldoutRMSE),
	})
	return model, nil
}

// Evaluate predicts the close of the current bar and compares it with the bar's open.
// An open above the prediction is a SELL, below is a BUY, and equal is NONE.
func (e *Engine) Evaluate(ctx context.Context, pair string, model *Model, current domain.Bar) (Signal, error) {
	if model == nil || model.Predictor == nil {
		return Signal{}, errors.New("model is not trained")
	}
	predicted, err := model.Predictor.Predict(FeatureRow(current))
	if err != nil {
		return Signal{}, fmt.Errorf("predicting %s: %w", pair, err)
	}
	if math.IsNaN(predicted) || math.IsInf(predicted, 0) {
		return Signal{}, fmt.Errorf("prediction for %s is not finite", pair)
	}

	sig := Signal{OpenPrice: current.Open, Predicted: predicted}
	switch {
	case current.Open > predicted:
		sig.Direction = domain.Sell
	case current.Open < predicted:
		sig.Direction = domain.Buy
	default:
		sig.Direction = domain.None
		e.logger.Warn(ctx, "Prediction equals open price, no trade", ports.Fields{
			"pair":  pair,
			"price": predicted,
		})
	}
	return sig, nil
}

// Decide builds the order parameters for a signal. It returns nil for a NONE signal.
// Entry is the bid for SELL and the ask for BUY; the take-profit is the prediction.
func (e *Engine) Decide(ctx context.Context, pair string, sig Signal, quote domain.Quote, last *domain.ClosedTrade) (*domain.TradeDecision, error) {
	var entry float64
	switch sig.Direction {
	case domain.None:
		return nil, nil
	case domain.Sell:
		entry = quote.Bid
	case domain.Buy:
		entry = quote.Ask
	default:
		return nil, fmt.Errorf("unknown direction %q", sig.Direction)
	}
	if entry <= 0 {
		return nil, fmt.Errorf("no usable %s price in quote for %s", sig.Direction, pair)
	}

	d := &domain.TradeDecision{
		Pair:       pair,
		Direction:  sig.Direction,
		EntryPrice: entry,
		TakeProfit: sig.Predicted,
		StopLoss:   risk.ProtectiveStop(sig.Direction, entry, sig.Predicted, e.cfg.RiskMultiplier),
		Volume:     e.sizer.Next(last),
		OpenPrice:  sig.OpenPrice,
		Predicted:  sig.Predicted,
	}
	if last.HitStopLoss() {
		e.logger.Info(ctx, "Previous trade stopped out, scaling volume", ports.Fields{
			"pair":   pair,
			"volume": d.Volume,
		})
	}
	return d, nil
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
