package signal

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxPredictBot/internal/domain"
	"fxPredictBot/internal/ports"
	"fxPredictBot/internal/risk"
)

type nopLogger struct{ warnings []string }

func (l *nopLogger) Debug(ctx context.Context, msg string, fields ...ports.Fields) {}
func (l *nopLogger) Info(ctx context.Context, msg string, fields ...ports.Fields)  {}
func (l *nopLogger) Warn(ctx context.Context, msg string, fields ...ports.Fields) {
	l.warnings = append(l.warnings, msg)
}
func (l *nopLogger) Error(ctx context.Context, err error, msg string, fields ...ports.Fields) {}

type fixedPredictor float64

func (p fixedPredictor) Predict(row []float64) (float64, error) { return float64(p), nil }

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// trendBars returns n one-minute bars whose open moves by step per bar and whose
// close is always open+step.
func trendBars(n int, start, step float64) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = patternBar(i, start+step*float64(i), step)
	}
	return bars
}

func patternBar(i int, open, step float64) domain.Bar {
	c := open + step
	return domain.Bar{
		Time:   t0.Add(time.Duration(i) * time.Minute),
		Open:   open,
		High:   math.Max(open, c) + 0.0005,
		Low:    math.Min(open, c) - 0.0005,
		Close:  c,
		Volume: 100,
		Spread: 0.0002,
	}
}

func newTestEngine(t *testing.T, lookahead int) (*Engine, *nopLogger) {
	t.Helper()
	sizer, err := risk.NewSizer(0.1, 2)
	require.NoError(t, err)
	logger := &nopLogger{}
	e, err := NewEngine(Config{Lookahead: lookahead, TestFraction: 0.2, Seed: 42, RiskMultiplier: 2},
		LinearRegression{Ridge: 1e-6}, sizer, logger)
	require.NoError(t, err)
	return e, logger
}

func TestBuildDataset(t *testing.T) {
	bars := trendBars(5, 1.0, 0.001)

	ds, err := BuildDataset(bars, 0)
	require.NoError(t, err)
	require.Equal(t, 5, ds.Len())
	assert.Equal(t, FeatureColumns, ds.Columns)
	assert.Equal(t, FeatureRow(bars[3]), ds.X[3])
	assert.InDelta(t, bars[3].Close, ds.Y[3], 1e-12)
	assert.Equal(t, float64(bars[0].Time.Unix()), ds.X[0][0])

	shifted, err := BuildDataset(bars, 2)
	require.NoError(t, err)
	require.Equal(t, 3, shifted.Len())
	assert.InDelta(t, bars[2].Close, shifted.Y[0], 1e-12)
	assert.InDelta(t, bars[4].Close, shifted.Y[2], 1e-12)
	assert.Equal(t, FeatureRow(bars[2]), shifted.X[2])
}

func TestBuildDatasetErrors(t *testing.T) {
	bars := trendBars(3, 1.0, 0.001)

	_, err := BuildDataset(bars, 2)
	assert.ErrorIs(t, err, ports.ErrInsufficientData)

	_, err = BuildDataset(bars[:1], 0)
	assert.ErrorIs(t, err, ports.ErrInsufficientData)

	_, err = BuildDataset(bars, -1)
	assert.Error(t, err)
}

func TestPartition(t *testing.T) {
	train, test, err := Partition(10, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, train, 8)
	assert.Len(t, test, 2)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, append(append([]int{}, train...), test...))

	train2, test2, err := Partition(10, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	train, test, err = Partition(2, 0.2, 1)
	require.NoError(t, err)
	assert.Len(t, train, 1)
	assert.Len(t, test, 1)

	train, test, err = Partition(1, 0.5, 1)
	require.NoError(t, err)
	assert.Len(t, train, 1)
	assert.Empty(t, test)

	_, _, err = Partition(0, 0.2, 1)
	assert.Error(t, err)
	_, _, err = Partition(5, 1, 1)
	assert.Error(t, err)
}

func TestLinearRegressionRecoversPlane(t *testing.T) {
	var x [][]float64
	var y []float64
	for i := 0; i < 40; i++ {
		x1 := float64(i)
		x2 := float64((i * i) % 7)
		x = append(x, []float64{x1, x2, 5})
		y = append(y, 2*x1+3*x2+1)
	}

	p, err := LinearRegression{Ridge: 1e-9}.Fit(x, y)
	require.NoError(t, err)

	got, err := p.Predict([]float64{50, 3, 5})
	require.NoError(t, err)
	assert.InDelta(t, 110.0, got, 1e-3)

	r2, rmse, err := Score(p, x, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r2, 1e-6)
	assert.Less(t, rmse, 1e-3)

	_, err = p.Predict([]float64{1, 2})
	assert.Error(t, err)
}

func TestLinearRegressionDegenerateInputs(t *testing.T) {
	p, err := LinearRegression{}.Fit([][]float64{{1, 2}}, []float64{7})
	require.NoError(t, err)
	got, err := p.Predict([]float64{10, 20})
	require.NoError(t, err)
	assert.Equal(t, 7.0, got)

	_, err = LinearRegression{}.Fit(nil, nil)
	assert.Error(t, err)
	_, err = LinearRegression{}.Fit([][]float64{{1}, {1, 2}}, []float64{1, 2})
	assert.Error(t, err)

	r2, rmse, err := Score(p, [][]float64{{1, 2}}, []float64{7})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(r2))
	assert.True(t, math.IsNaN(rmse))
}

func TestEngineRisingSeriesBuys(t *testing.T) {
	e, _ := newTestEngine(t, 0)
	ctx := context.Background()
	window := trendBars(100, 1.0, 0.001)

	model, err := e.Train(ctx, "EURUSD", window)
	require.NoError(t, err)
	assert.Equal(t, 80, model.TrainRows)
	assert.Equal(t, 20, model.TestRows)

	last := window[len(window)-1]
	current := patternBar(100, last.Close+1e-6, 0.001)
	sig, err := e.Evaluate(ctx, "EURUSD", model, current)
	require.NoError(t, err)
	require.Equal(t, domain.Buy, sig.Direction)
	assert.Greater(t, sig.Predicted, current.Open)

	quote := domain.Quote{Bid: current.Open - 0.0001, Ask: current.Open}
	d, err := e.Decide(ctx, "EURUSD", sig, quote, nil)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, quote.Ask, d.EntryPrice)
	assert.Greater(t, d.TakeProfit, d.EntryPrice)
	assert.Less(t, d.StopLoss, d.EntryPrice)
	assert.Equal(t, 0.1, d.Volume)
	assert.NoError(t, risk.ValidateDecision(*d))
}

func TestEngineIsDeterministicForSameWindow(t *testing.T) {
	e, _ := newTestEngine(t, 0)
	ctx := context.Background()
	window := trendBars(120, 1.0, 0.0005)
	for i := range window {
		window[i].Close += 0.0003 * math.Sin(float64(i)*0.7)
		window[i].Volume += float64(i % 7)
	}
	current := patternBar(120, window[119].Close, 0.0005)
	quote := domain.Quote{Bid: current.Open - 0.0001, Ask: current.Open}

	decide := func() (*Model, Signal, *domain.TradeDecision) {
		model, err := e.Train(ctx, "EURUSD", window)
		require.NoError(t, err)
		sig, err := e.Evaluate(ctx, "EURUSD", model, current)
		require.NoError(t, err)
		d, err := e.Decide(ctx, "EURUSD", sig, quote, nil)
		require.NoError(t, err)
		return model, sig, d
	}

	m1, s1, d1 := decide()
	m2, s2, d2 := decide()
	assert.Equal(t, s1, s2)
	assert.Equal(t, m1.HoldoutR2, m2.HoldoutR2)
	assert.Equal(t, m1.HoldoutRMSE, m2.HoldoutRMSE)
	assert.Equal(t, d1, d2)
}

func TestEngineFallingSeriesSells(t *testing.T) {
	e, _ := newTestEngine(t, 0)
	ctx := context.Background()
	window := trendBars(100, 2.0, -0.001)

	model, err := e.Train(ctx, "GBPUSD", window)
	require.NoError(t, err)

	last := window[len(window)-1]
	current := patternBar(100, last.Close-1e-6, -0.001)
	sig, err := e.Evaluate(ctx, "GBPUSD", model, current)
	require.NoError(t, err)
	require.Equal(t, domain.Sell, sig.Direction)

	quote := domain.Quote{Bid: current.Open, Ask: current.Open + 0.0001}
	d, err := e.Decide(ctx, "GBPUSD", sig, quote, nil)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, quote.Bid, d.EntryPrice)
	assert.Less(t, d.TakeProfit, d.EntryPrice)
	assert.Greater(t, d.StopLoss, d.EntryPrice)
}

func TestEngineLookaheadTrains(t *testing.T) {
	e, _ := newTestEngine(t, 3)
	model, err := e.Train(context.Background(), "EURUSD", trendBars(50, 1.0, 0.001))
	require.NoError(t, err)
	assert.Equal(t, 47, model.TrainRows+model.TestRows)
}

func TestEvaluateEqualPriceIsNone(t *testing.T) {
	e, logger := newTestEngine(t, 0)
	ctx := context.Background()
	model := &Model{Predictor: fixedPredictor(1.1)}

	sig, err := e.Evaluate(ctx, "EURUSD", model, domain.Bar{Time: t0, Open: 1.1})
	require.NoError(t, err)
	assert.Equal(t, domain.None, sig.Direction)
	assert.Len(t, logger.warnings, 1)

	d, err := e.Decide(ctx, "EURUSD", sig, domain.Quote{Bid: 1.1, Ask: 1.1001}, nil)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestDecideStopAndSizing(t *testing.T) {
	e, _ := newTestEngine(t, 0)
	ctx := context.Background()
	quote := domain.Quote{Bid: 1.1000, Ask: 1.1002}

	sell := Signal{Direction: domain.Sell, OpenPrice: 1.1005, Predicted: 1.0990}
	d, err := e.Decide(ctx, "EURUSD", sell, quote, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.1020, d.StopLoss, 1e-9)
	assert.Equal(t, 1.0990, d.TakeProfit)
	assert.Equal(t, 0.1, d.Volume)

	stopped := &domain.ClosedTrade{Pair: "EURUSD", Reason: domain.CloseReasonStopLoss}
	d, err = e.Decide(ctx, "EURUSD", sell, quote, stopped)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, d.Volume, 1e-12)

	won := &domain.ClosedTrade{Pair: "EURUSD", Reason: domain.CloseReasonTakeProfit}
	buy := Signal{Direction: domain.Buy, OpenPrice: 1.0995, Predicted: 1.1012}
	d, err = e.Decide(ctx, "EURUSD", buy, quote, won)
	require.NoError(t, err)
	assert.Equal(t, 1.1002, d.EntryPrice)
	assert.InDelta(t, 1.0982, d.StopLoss, 1e-9)
	assert.Equal(t, 0.1, d.Volume)
}

func TestEvaluateRejectsUntrainedModel(t *testing.T) {
	e, _ := newTestEngine(t, 0)
	_, err := e.Evaluate(context.Background(), "EURUSD", nil, domain.Bar{})
	assert.Error(t, err)
}
