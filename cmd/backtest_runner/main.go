package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fxPredictBot/config"
	"fxPredictBot/internal/adapters/logger"
	"fxPredictBot/internal/adapters/sqlite"
	"fxPredictBot/internal/app"
	"fxPredictBot/internal/backtest"
	"fxPredictBot/internal/barstore"
	"fxPredictBot/internal/paper"
	"fxPredictBot/internal/ports"
)

type options struct {
	dataDir   string
	dbPath    string
	balance   float64
	start     int
	maxCycles int
}

func main() {
	if err := newRootCmd(os.Stdout).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "FATAL:", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:   "backtest_runner",
		Short: "Replay bar files through the decision loop on a paper venue",
		Long: `backtest_runner loads one <PAIR>.csv or <PAIR>.parquet file per configured pair from
--data, replays them bar by bar through the trading service against a paper venue backed by
a SQLite ledger and prints the resulting performance report.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOfflineConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return run(cmd.Context(), cfg, opts, out)
		},
	}

	cmd.Flags().StringVar(&opts.dataDir, "data", "data", "Directory holding one bar file per pair")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "Ledger database (default: a fresh file in a temp dir)")
	cmd.Flags().Float64Var(&opts.balance, "balance", 1000, "Initial balance for the report")
	cmd.Flags().IntVar(&opts.start, "start", 0, "Index of the first bar to trade (default BARS_TO_TRAIN)")
	cmd.Flags().IntVar(&opts.maxCycles, "max-cycles", 0, "Stop after this many cycles (0 replays everything)")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, opts options, out io.Writer) error {
	if opts.start > 0 && opts.start < cfg.BarsToTrain {
		return fmt.Errorf("--start %d leaves fewer than BARS_TO_TRAIN=%d bars before the first trade", opts.start, cfg.BarsToTrain)
	}

	appLogger := logger.New(logger.ParseLevel(cfg.LogLevel))

	// 1. Load bar series
	series, err := barstore.LoadDir(opts.dataDir, cfg.Pairs)
	if err != nil {
		return err
	}
	for pair, bars := range series {
		appLogger.Info(ctx, "Loaded bars", ports.Fields{"pair": pair, "count": len(bars)})
	}

	// 2. Fresh ledger
	dbPath := opts.dbPath
	if dbPath == "" {
		dir, err := os.MkdirTemp("", "fxbot-backtest-")
		if err != nil {
			return fmt.Errorf("creating ledger directory: %w", err)
		}
		defer os.RemoveAll(dir)
		dbPath = filepath.Join(dir, "ledger.db")
	}
	ledger, err := sqlite.NewRepository(sqlite.Config{DBPath: dbPath, Logger: appLogger.With("ledger")})
	if err != nil {
		return err
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing ledger")
		}
	}()

	// 3. Paper venue, engine and service
	start := opts.start
	if start <= 0 {
		start = cfg.BarsToTrain
	}

	venue, err := paper.NewBroker(paper.Config{Series: series, Start: start}, ledger, appLogger.With("paper"))
	if err != nil {
		return err
	}
	engine, err := app.NewEngine(cfg, appLogger.With("signal"))
	if err != nil {
		return err
	}
	cfg.RunInterval = 0
	cfg.MetricsAddr = ""
	service, err := app.NewTradingService(cfg, appLogger.With("app"), venue, engine)
	if err != nil {
		return err
	}

	// 4. Replay
	report, err := backtest.Run(ctx, backtest.Config{InitialBalance: opts.balance, MaxCycles: opts.maxCycles},
		service, venue, ledger, appLogger.With("backtest"))
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}
	if total, err := ledger.GetTotalProfit(ctx); err == nil {
		appLogger.Info(ctx, "Ledger total profit", ports.Fields{"total": total})
	}
	return report.Print(out)
}
