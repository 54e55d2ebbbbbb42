package backtest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxPredictBot/config"
	"fxPredictBot/internal/adapters/sqlite"
	"fxPredictBot/internal/app"
	"fxPredictBot/internal/domain"
	"fxPredictBot/internal/paper"
	"fxPredictBot/internal/risk"
	"fxPredictBot/internal/signal"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type stubCycle struct{ runs int }

func (c *stubCycle) RunOnce(ctx context.Context) []app.PairReport {
	c.runs++
	return []app.PairReport{{Pair: "EURUSD", Outcome: app.OutcomeNoSignal}}
}

type stubVenue struct {
	steps    int
	limit    int
	stepErr  error
	closeAll int
}

func (v *stubVenue) Step(ctx context.Context) (bool, error) {
	v.steps++
	return v.steps < v.limit, v.stepErr
}

func (v *stubVenue) CloseAll(ctx context.Context) error {
	v.closeAll++
	return nil
}

type stubTrades []domain.ClosedTrade

func (s stubTrades) ClosedTrades(ctx context.Context) ([]domain.ClosedTrade, error) {
	return s, nil
}

func TestRunStopsWhenReplayEnds(t *testing.T) {
	cycle := &stubCycle{}
	venue := &stubVenue{limit: 4}
	r, err := Run(context.Background(), Config{InitialBalance: 10}, cycle, venue, stubTrades{}, &mockLogger{})
	require.NoError(t, err)
	assert.Equal(t, 4, r.Cycles)
	assert.Equal(t, 4, cycle.runs)
	assert.Equal(t, 1, venue.closeAll)
	assert.Equal(t, 4, r.Outcomes[string(app.OutcomeNoSignal)])
}

func TestRunHonoursMaxCycles(t *testing.T) {
	venue := &stubVenue{limit: 100}
	r, err := Run(context.Background(), Config{MaxCycles: 3}, &stubCycle{}, venue, stubTrades{}, &mockLogger{})
	require.NoError(t, err)
	assert.Equal(t, 3, r.Cycles)
}

func TestRunStepError(t *testing.T) {
	venue := &stubVenue{limit: 10, stepErr: errors.New("disk full")}
	_, err := Run(context.Background(), Config{}, &stubCycle{}, venue, stubTrades{}, &mockLogger{})
	assert.ErrorContains(t, err, "disk full")
}

func risingBars(n int) []domain.Bar {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	for i := range bars {
		open := 1.0 + 0.001*float64(i)
		bars[i] = domain.Bar{
			Time:   t0.Add(time.Duration(i) * time.Minute),
			Open:   open,
			High:   open + 0.0015,
			Low:    open - 0.0005,
			Close:  open + 0.001,
			Volume: 100,
			Spread: 0.0001,
		}
	}
	return bars
}

func replayConfig() *config.Config {
	return &config.Config{
		Pairs:                   []string{"EURUSD"},
		Timeframe:               "1m",
		LotSize:                 1,
		LossLotMultiplier:       2,
		RiskMultiplier:          2,
		MaxOpenPositionsPerPair: 1,
		MaxStopRetries:          0,
		BarsToTrain:             50,
		TestFraction:            0.2,
		SplitSeed:               7,
		Ridge:                   1e-6,
		PollInitialInterval:     time.Millisecond,
		PollMaxInterval:         time.Millisecond,
		PollMaxElapsed:          10 * time.Millisecond,
	}
}

func TestRunReplaysRisingMarket(t *testing.T) {
	bars := risingBars(200)
	logger := &mockLogger{}
	ledger, err := sqlite.NewRepository(sqlite.Config{DBPath: filepath.Join(t.TempDir(), "bt.db"), Logger: logger})
	require.NoError(t, err)
	defer ledger.Close()

	cfg := replayConfig()
	venue, err := paper.NewBroker(paper.Config{Series: map[string][]domain.Bar{"EURUSD": bars}, Start: cfg.BarsToTrain}, ledger, logger)
	require.NoError(t, err)
	sizer, err := risk.NewSizer(cfg.LotSize, cfg.LossLotMultiplier)
	require.NoError(t, err)
	engine, err := signal.NewEngine(signal.Config{TestFraction: cfg.TestFraction, Seed: cfg.SplitSeed, RiskMultiplier: cfg.RiskMultiplier},
		signal.LinearRegression{Ridge: cfg.Ridge}, sizer, logger)
	require.NoError(t, err)
	svc, err := app.NewTradingService(cfg, logger, venue, engine)
	require.NoError(t, err)

	r, err := Run(context.Background(), Config{InitialBalance: 1000}, svc, venue, ledger, logger)
	require.NoError(t, err)
	assert.Equal(t, 150, r.Cycles)
	assert.Greater(t, r.TotalTrades, 0)
	assert.Equal(t, r.Outcomes[string(app.OutcomeSubmitted)], r.TotalTrades)
	assert.Equal(t, r.TotalTrades, r.WinningTrades+r.LosingTrades)

	n, err := ledger.OpenPositions(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunStartBeforeFullWindowEndsWithDataErrors(t *testing.T) {
	logger := &mockLogger{}
	ledger, err := sqlite.NewRepository(sqlite.Config{DBPath: filepath.Join(t.TempDir(), "bt.db"), Logger: logger})
	require.NoError(t, err)
	defer ledger.Close()

	cfg := replayConfig()
	cfg.PollMaxElapsed = 0 // would wait forever on pending data
	venue, err := paper.NewBroker(paper.Config{Series: map[string][]domain.Bar{"EURUSD": risingBars(60)}, Start: 40}, ledger, logger)
	require.NoError(t, err)
	engine, err := app.NewEngine(cfg, logger)
	require.NoError(t, err)
	svc, err := app.NewTradingService(cfg, logger, venue, engine)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r, err := Run(ctx, Config{InitialBalance: 1000}, svc, venue, ledger, logger)
	require.NoError(t, err)
	assert.Equal(t, 20, r.Cycles)
	assert.Equal(t, 10, r.Outcomes[string(app.OutcomeDataError)])
}
