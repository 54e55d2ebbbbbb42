package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fxPredictBot/internal/metrics"
	"fxPredictBot/internal/ports"
)

// Start runs a decision cycle immediately and then every RunInterval until the context is
// canceled or the process receives SIGINT/SIGTERM. A zero RunInterval runs a single pass.
func (s *TradingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Trading Service...", ports.Fields{
		"pairs":     s.cfg.Pairs,
		"timeframe": s.cfg.Timeframe,
		"dryRun":    s.cfg.DryRun,
	})

	// Create a context that can be canceled by signals
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", ports.Fields{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	if s.cfg.MetricsAddr != "" {
		srv, err := metrics.Serve(s.cfg.MetricsAddr)
		if err != nil {
			s.logger.Error(ctx, err, "Failed to start metrics endpoint")
			return err
		}
		defer srv.Close()
		s.logger.Info(ctx, "Metrics endpoint listening", ports.Fields{"addr": srv.Addr})
	}

	s.RunOnce(ctx)
	if s.cfg.RunInterval <= 0 {
		s.logger.Info(ctx, "Trading Service stopped.")
		return nil
	}

	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Trading Service stopped.")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}
