package backtest

import (
	"context"
	"errors"
	"fmt"

	"fxPredictBot/internal/app"
	"fxPredictBot/internal/domain"
	"fxPredictBot/internal/ports"
)

// Cycle runs one decision pass over all pairs.
type Cycle interface {
	RunOnce(ctx context.Context) []app.PairReport
}

// Venue is a replay that can be moved forward one bar at a time.
type Venue interface {
	Step(ctx context.Context) (bool, error)
	CloseAll(ctx context.Context) error
}

// TradeSource lists the trades closed during the replay.
type TradeSource interface {
	ClosedTrades(ctx context.Context) ([]domain.ClosedTrade, error)
}

// Config holds configuration for backtesting
type Config struct {
	InitialBalance float64
	MaxCycles      int // 0 replays every bar
}

// Run alternates decision cycles and venue steps until the replay is exhausted, closes
// whatever is still open and reports on the resulting trades.
func Run(ctx context.Context, cfg Config, cycle Cycle, venue Venue, trades TradeSource, logger ports.Logger) (*Report, error) {
	if cycle == nil || venue == nil || trades == nil || logger == nil {
		return nil, errors.New("cycle, venue, trades and logger are required")
	}

	outcomes := make(map[string]int)
	cycles := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, rep := range cycle.RunOnce(ctx) {
			outcomes[string(rep.Outcome)]++
		}
		cycles++
		if cycles%500 == 0 {
			logger.Info(ctx, "Backtest progress", ports.Fields{"cycles": cycles})
		}

		more, err := venue.Step(ctx)
		if err != nil {
			return nil, fmt.Errorf("stepping replay after cycle %d: %w", cycles, err)
		}
		if !more || (cfg.MaxCycles > 0 && cycles >= cfg.MaxCycles) {
			break
		}
	}

	if err := venue.CloseAll(ctx); err != nil {
		return nil, fmt.Errorf("closing remaining positions: %w", err)
	}
	closed, err := trades.ClosedTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading closed trades: %w", err)
	}

	report := Analyze(closed, cfg.InitialBalance)
	report.Cycles = cycles
	report.Outcomes = outcomes
	logger.Info(ctx, "Backtest finished", ports.Fields{
		"cycles":        cycles,
		"trades":        report.TotalTrades,
		"winRate":       report.WinRate,
		"netProfit":     report.NetProfit,
		"maxDrawdown":   report.MaxDrawdown,
		"maxLossStreak": report.MaxConsecutiveLosses,
	})
	return report, nil
}
