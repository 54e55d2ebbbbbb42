package app

import (
	"fmt"

	"fxPredictBot/config"
	"fxPredictBot/internal/ports"
	"fxPredictBot/internal/risk"
	"fxPredictBot/internal/signal"
)

// NewEngine builds the signal engine described by cfg: a ridge-stabilized linear
// regression and a sizer that doubles the lot once after a stop-loss exit.
func NewEngine(cfg *config.Config, logger ports.Logger) (*signal.Engine, error) {
	sizer, err := risk.NewSizer(cfg.LotSize, cfg.LossLotMultiplier)
	if err != nil {
		return nil, fmt.Errorf("creating sizer: %w", err)
	}
	return signal.NewEngine(signal.Config{
		Lookahead:      cfg.Lookahead,
		TestFraction:   cfg.TestFraction,
		Seed:           cfg.SplitSeed,
		RiskMultiplier: cfg.RiskMultiplier,
	}, signal.LinearRegression{Ridge: cfg.Ridge}, sizer, logger)
}
