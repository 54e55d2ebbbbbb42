package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"fxPredictBot/internal/domain"
	"fxPredictBot/internal/ports"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Trading Parameters
	Pairs                   []string
	Timeframe               domain.Timeframe
	LotSize                 float64 // Default volume per order
	LossLotMultiplier       float64 // Volume factor applied after a stop-loss exit
	RiskMultiplier          float64 // Stop distance as a multiple of the predicted deviation
	MaxOpenPositionsPerPair int
	MaxStopRetries          int // Resubmissions after an invalid-stops rejection
	DryRun                  bool
	OrderComment            string

	// Model Parameters
	BarsToTrain  int
	Lookahead    int // Target is the close this many bars ahead
	TestFraction float64
	SplitSeed    int64
	Ridge        float64

	// Polling and pacing
	PollInitialInterval time.Duration
	PollMaxInterval     time.Duration
	PollMaxElapsed      time.Duration // 0 polls until data arrives
	RequestsPerSecond   int
	RunInterval         time.Duration // 0 runs a single pass

	// Infrastructure
	DBPath      string
	MetricsAddr string
	LogLevel    string
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	return load(true)
}

// LoadOfflineConfig loads configuration for tools that never reach the exchange's
// private endpoints, such as backtests. API keys are optional.
func LoadOfflineConfig() (*Config, error) {
	return load(false)
}

func load(requireKeys bool) (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	cfg.DryRun = getEnvAsBool("DRY_RUN", false)

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety
	if requireKeys && !cfg.DryRun && (cfg.APIKey == "" || cfg.SecretKey == "") {
		errs = append(errs, "BINANCE_API_KEY and BINANCE_API_SECRET must be set unless DRY_RUN is enabled")
	}

	// Trading Parameters
	cfg.Pairs = parseList(getEnv("PAIRS", "EURUSDT,GBPUSDT"))
	if len(cfg.Pairs) == 0 {
		errs = append(errs, "PAIRS must list at least one pair")
	}

	cfg.Timeframe = domain.Timeframe(getEnv("TIMEFRAME", "1m"))
	if _, err := cfg.Timeframe.Duration(); err != nil {
		errs = append(errs, fmt.Sprintf("invalid TIMEFRAME: %v", err))
	}

	cfg.LotSize, err = getEnvAsFloatRequired("LOT_SIZE", 0.1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LOT_SIZE: %v", err))
	} else if cfg.LotSize <= 0 {
		errs = append(errs, "LOT_SIZE must be positive")
	}

	cfg.LossLotMultiplier, err = getEnvAsFloatRequired("LOSS_LOT_MULTIPLIER", 2.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LOSS_LOT_MULTIPLIER: %v", err))
	} else if cfg.LossLotMultiplier < 1 {
		errs = append(errs, "LOSS_LOT_MULTIPLIER must be at least 1")
	}

	cfg.RiskMultiplier, err = getEnvAsFloatRequired("RISK_MULTIPLIER", 2.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_MULTIPLIER: %v", err))
	} else if cfg.RiskMultiplier <= 0 {
		errs = append(errs, "RISK_MULTIPLIER must be positive")
	}

	cfg.MaxOpenPositionsPerPair, err = getEnvAsIntRequired("MAX_OPEN_POSITIONS_PER_PAIR", 1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_OPEN_POSITIONS_PER_PAIR: %v", err))
	} else if cfg.MaxOpenPositionsPerPair <= 0 {
		errs = append(errs, "MAX_OPEN_POSITIONS_PER_PAIR must be positive")
	}

	cfg.MaxStopRetries = getEnvAsInt("MAX_STOP_RETRIES", 2)
	if cfg.MaxStopRetries < 0 || cfg.MaxStopRetries > 10 {
		errs = append(errs, "MAX_STOP_RETRIES must be between 0 and 10")
	}

	cfg.OrderComment = getEnv("ORDER_COMMENT", "fxPredictBot")

	// Model Parameters
	cfg.BarsToTrain, err = getEnvAsIntRequired("BARS_TO_TRAIN", 4500)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BARS_TO_TRAIN: %v", err))
	} else if cfg.BarsToTrain < 2 {
		errs = append(errs, "BARS_TO_TRAIN must be at least 2")
	}

	cfg.Lookahead = getEnvAsInt("LOOKAHEAD", 0)
	if cfg.Lookahead < 0 {
		errs = append(errs, "LOOKAHEAD cannot be negative")
	} else if cfg.BarsToTrain-cfg.Lookahead < 2 {
		errs = append(errs, "BARS_TO_TRAIN must exceed LOOKAHEAD by at least 2")
	}

	cfg.TestFraction = getEnvAsFloat("TEST_FRACTION", 0.2)
	if cfg.TestFraction < 0 || cfg.TestFraction >= 1 {
		errs = append(errs, "TEST_FRACTION must be in [0, 1)")
	}

	cfg.SplitSeed = int64(getEnvAsInt("SPLIT_SEED", 42))

	cfg.Ridge = getEnvAsFloat("RIDGE", 1e-6)
	if cfg.Ridge <= 0 {
		errs = append(errs, "RIDGE must be positive")
	}

	// Polling and pacing
	cfg.PollInitialInterval = getEnvAsDuration("POLL_INITIAL_INTERVAL", 500*time.Millisecond)
	cfg.PollMaxInterval = getEnvAsDuration("POLL_MAX_INTERVAL", 10*time.Second)
	cfg.PollMaxElapsed = getEnvAsDuration("POLL_MAX_ELAPSED", 2*time.Minute)
	if cfg.PollInitialInterval <= 0 || cfg.PollMaxInterval < cfg.PollInitialInterval {
		errs = append(errs, "POLL_INITIAL_INTERVAL must be positive and not exceed POLL_MAX_INTERVAL")
	}
	if cfg.PollMaxElapsed < 0 {
		errs = append(errs, "POLL_MAX_ELAPSED cannot be negative")
	}

	cfg.RequestsPerSecond = getEnvAsInt("REQUESTS_PER_SECOND", 10)
	if cfg.RequestsPerSecond <= 0 {
		errs = append(errs, "REQUESTS_PER_SECOND must be positive")
	}

	cfg.RunInterval = getEnvAsDuration("RUN_INTERVAL", 0)
	if cfg.RunInterval < 0 {
		errs = append(errs, "RUN_INTERVAL cannot be negative")
	}

	// Infrastructure
	cfg.DBPath = getEnv("DB_PATH", "./data/paper.db")
	cfg.MetricsAddr = getEnv("METRICS_ADDR", "")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: configuration validation failed: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func parseList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("1m30s") or plain seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
