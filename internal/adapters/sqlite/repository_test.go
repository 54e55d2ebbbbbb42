package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"fxPredictBot/internal/domain"
	"fxPredictBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

var t0 = time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

func openPosition(pair string, dir domain.Direction, entry float64, at time.Time) *domain.Position {
	return &domain.Position{
		ClientID:   "c-" + pair,
		Pair:       pair,
		Direction:  dir,
		Volume:     0.1,
		EntryPrice: entry,
		StopLoss:   entry - 0.002,
		TakeProfit: entry + 0.001,
		EntryTime:  at,
		Status:     domain.StatusOpen,
	}
}

func TestNewRepositoryRequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}

func TestRepository_CreateAndFindOpen(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	pos := openPosition("EURUSD", domain.Buy, 1.1, t0)
	id, err := repo.Create(ctx, pos)
	require.NoError(t, err)
	assert.Equal(t, id, pos.ID)
	_, err = repo.Create(ctx, openPosition("GBPUSD", domain.Sell, 1.25, t0))
	require.NoError(t, err)

	open, err := repo.FindOpen(ctx, "EURUSD")
	require.NoError(t, err)
	require.Len(t, open, 1)
	got := open[0]
	assert.Equal(t, "c-EURUSD", got.ClientID)
	assert.Equal(t, domain.Buy, got.Direction)
	assert.Equal(t, 1.1, got.EntryPrice)
	assert.True(t, t0.Equal(got.EntryTime))
	assert.Equal(t, domain.StatusOpen, got.Status)
	assert.Empty(t, got.CloseReason)

	all, err := repo.FindOpen(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	n, err := repo.OpenPositions(ctx, "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = repo.OpenPositions(ctx, "USDJPY")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRepository_LastClosed(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	last, err := repo.LastClosed(ctx, "EURUSD")
	require.NoError(t, err)
	assert.Nil(t, last)

	first := openPosition("EURUSD", domain.Buy, 1.1, t0)
	_, err = repo.Create(ctx, first)
	require.NoError(t, err)
	second := openPosition("EURUSD", domain.Sell, 1.2, t0.Add(time.Minute))
	_, err = repo.Create(ctx, second)
	require.NoError(t, err)

	first.Settle(1.098, t0.Add(3*time.Minute), domain.CloseReasonStopLoss)
	require.NoError(t, repo.Update(ctx, first))
	second.Settle(1.199, t0.Add(2*time.Minute), domain.CloseReasonTakeProfit)
	require.NoError(t, repo.Update(ctx, second))

	last, err = repo.LastClosed(ctx, "EURUSD")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, domain.CloseReasonStopLoss, last.Reason)
	assert.True(t, last.HitStopLoss())
	assert.InDelta(t, -0.0002, last.PNL, 1e-12)
	assert.True(t, t0.Add(3*time.Minute).Equal(last.ClosedAt))

	n, err := repo.OpenPositions(ctx, "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	trades, err := repo.ClosedTrades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, domain.CloseReasonTakeProfit, trades[0].Reason)
	assert.Equal(t, domain.CloseReasonStopLoss, trades[1].Reason)

	total, err := repo.GetTotalProfit(ctx)
	require.NoError(t, err)
	assert.InDelta(t, trades[0].PNL+trades[1].PNL, total, 1e-12)
}

func TestRepository_UpdateMissingPosition(t *testing.T) {
	repo := setupTestDB(t)
	pos := openPosition("EURUSD", domain.Buy, 1.1, t0)
	pos.ID = 99
	pos.Settle(1.2, t0, domain.CloseReasonMarket)
	err := repo.Update(context.Background(), pos)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRepository_ClosedDatabase(t *testing.T) {
	repo := setupTestDB(t)
	require.NoError(t, repo.Close())

	_, err := repo.OpenPositions(context.Background(), "EURUSD")
	assert.ErrorIs(t, err, ports.ErrQueryFailed)

	_, err = repo.Create(context.Background(), openPosition("EURUSD", domain.Buy, 1.1, t0))
	assert.ErrorIs(t, err, ports.ErrUpdateFailed)
}
