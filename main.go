package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fxPredictBot/config"
	"fxPredictBot/internal/adapters/binanceclient"
	"fxPredictBot/internal/adapters/logger"
	"fxPredictBot/internal/app"
	"fxPredictBot/internal/ports"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "FATAL:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fxbot",
		Short: "Regression-driven currency pair trading bot",
		Long: `fxbot fits a linear regression on recent bars of every configured pair, compares
the predicted close with the current open and places a market order with the prediction
as take-profit and a protective stop derived from the predicted move.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// 1. Load Configuration
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := applyFlags(cmd, cfg); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().Bool("dry-run", false, "Validate orders instead of submitting them")
	cmd.Flags().Duration("interval", 0, "Repeat the decision cycle at this period (0 runs once)")
	cmd.Flags().String("pairs", "", "Comma separated pairs, overrides PAIRS")
	cmd.Flags().String("log-level", "", "Log level, overrides LOG_LEVEL")

	return cmd
}

// applyFlags overrides environment configuration with explicitly set flags.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("dry-run") {
		cfg.DryRun, _ = flags.GetBool("dry-run")
	}
	if flags.Changed("interval") {
		cfg.RunInterval, _ = flags.GetDuration("interval")
		if cfg.RunInterval < 0 {
			return fmt.Errorf("--interval cannot be negative")
		}
	}
	if flags.Changed("pairs") {
		raw, _ := flags.GetString("pairs")
		var pairs []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
				pairs = append(pairs, p)
			}
		}
		if len(pairs) == 0 {
			return fmt.Errorf("--pairs must list at least one pair")
		}
		cfg.Pairs = pairs
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config) error {
	// 2. Initialize Logger
	appLogger := logger.New(logger.ParseLevel(cfg.LogLevel))
	appLogger.Info(ctx, "Logger initialized", ports.Fields{"level": cfg.LogLevel})

	// 3. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:            cfg.APIKey,
		SecretKey:         cfg.SecretKey,
		UseTestnet:        cfg.IsTestnet,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            appLogger.With("binance"),
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		return err
	}
	syncCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := binanceClient.SetServerTime(syncCtx); err != nil {
		appLogger.Warn(ctx, "Could not sync server time, using local clock", ports.Fields{"error": err.Error()})
	}
	cancel()
	appLogger.Info(ctx, "Binance client initialized")

	// 4. Initialize Signal Engine
	engine, err := app.NewEngine(cfg, appLogger.With("signal"))
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize signal engine")
		return err
	}

	// 5. Initialize Application Service
	tradingService, err := app.NewTradingService(cfg, appLogger.With("app"), binanceClient, engine)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading service")
		return err
	}
	appLogger.Info(ctx, "Trading service initialized")

	// 6. Start the Service
	if err := tradingService.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Trading service exited with error")
		return err
	}

	appLogger.Info(ctx, "Application finished gracefully.")
	return nil
}
