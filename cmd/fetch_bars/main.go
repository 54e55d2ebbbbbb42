package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fxPredictBot/internal/adapters/binanceclient"
	"fxPredictBot/internal/adapters/logger"
	"fxPredictBot/internal/barstore"
	"fxPredictBot/internal/domain"
	"fxPredictBot/internal/ports"
)

type options struct {
	pair      string
	timeframe string
	days      int
	out       string
	testnet   bool
	logLevel  string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "FATAL:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:          "fetch_bars",
		Short:        "Download historical bars from Binance futures into a CSV or Parquet file",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.pair, "pair", "EURUSDT", "Pair to download")
	cmd.Flags().StringVar(&opts.timeframe, "timeframe", "1m", "Bar timeframe")
	cmd.Flags().IntVar(&opts.days, "days", 30, "Number of days back from now")
	cmd.Flags().StringVar(&opts.out, "out", "", "Output file, .csv or .parquet (default data/<PAIR>_<TF>_<FROM>_to_<TO>.csv)")
	cmd.Flags().BoolVar(&opts.testnet, "testnet", false, "Download from the futures testnet")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level")

	return cmd
}

// outputPath returns the file to write, defaulting to a CSV under data/.
func outputPath(opts options, start, end time.Time) string {
	if opts.out != "" {
		return opts.out
	}
	return filepath.Join("data", fmt.Sprintf("%s_%s_%s_to_%s.csv",
		opts.pair, opts.timeframe, start.Format("20060102"), end.Format("20060102")))
}

func run(ctx context.Context, opts options) error {
	opts.pair = strings.ToUpper(strings.TrimSpace(opts.pair))
	tf := domain.Timeframe(opts.timeframe)
	if _, err := tf.Duration(); err != nil {
		return err
	}
	if opts.days <= 0 {
		return fmt.Errorf("--days must be positive")
	}

	appLogger := logger.New(logger.ParseLevel(opts.logLevel))

	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     os.Getenv("BINANCE_API_KEY"),
		SecretKey:  os.Getenv("BINANCE_API_SECRET"),
		UseTestnet: opts.testnet,
		Logger:     appLogger.With("binance"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Binance client: %w", err)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -opts.days)
	path := outputPath(opts, start, end)
	if _, err := barstore.ForPath(path); err != nil {
		return err
	}

	appLogger.Info(ctx, "Fetching bars", ports.Fields{"pair": opts.pair, "timeframe": tf, "start": start, "end": end})
	bars, err := binanceClient.HistoryRange(ctx, opts.pair, tf, start, end)
	if err != nil {
		return fmt.Errorf("fetching bars: %w", err)
	}
	appLogger.Info(ctx, "Fetched bars", ports.Fields{"count": len(bars)})

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := barstore.Save(path, bars); err != nil {
		return fmt.Errorf("saving bars: %w", err)
	}
	appLogger.Info(ctx, "Saved to", ports.Fields{"filename": path})
	return nil
}
