package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fxPredictBot/internal/domain"
	"fxPredictBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository is the position ledger of the paper venue. It implements
// ports.PositionQuery and ports.TradeHistory.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

var (
	_ ports.PositionQuery = (*Repository)(nil)
	_ ports.TradeHistory  = (*Repository)(nil)
)

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/paper.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Paper ledger ready", ports.Fields{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// Times are stored as Unix nanoseconds so ordering by them is exact.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id TEXT NOT NULL,
		pair TEXT NOT NULL,
		direction TEXT NOT NULL,
		volume REAL NOT NULL,
		entry_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		take_profit REAL NOT NULL,
		entry_time INTEGER NOT NULL,
		exit_price REAL DEFAULT NULL,
		exit_time INTEGER DEFAULT NULL,
		status TEXT NOT NULL,
		pnl REAL DEFAULT NULL,
		close_reason TEXT DEFAULT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_positions_pair_status ON positions (pair, status);
	CREATE INDEX IF NOT EXISTS idx_positions_pair_exit_time ON positions (pair, exit_time);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// Create saves a new position and returns its assigned ID.
func (r *Repository) Create(ctx context.Context, pos *domain.Position) (int64, error) {
	const query = `
	INSERT INTO positions (client_id, pair, direction, volume, entry_price, stop_loss, take_profit, entry_time, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		pos.ClientID, pos.Pair, pos.Direction, pos.Volume, pos.EntryPrice, pos.StopLoss, pos.TakeProfit,
		pos.EntryTime.UnixNano(), pos.Status)
	if err != nil {
		return 0, fmt.Errorf("failed to insert position for pair %s: %w: %w", pos.Pair, ports.ErrUpdateFailed, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for position %s: %w", pos.Pair, err)
	}
	pos.ID = id
	r.logger.Debug(ctx, "Position created", ports.Fields{"positionID": id, "pair": pos.Pair, "direction": pos.Direction})
	return id, nil
}

// Update stores the exit of a position based on its ID.
func (r *Repository) Update(ctx context.Context, pos *domain.Position) error {
	const query = `
	UPDATE positions
	SET exit_price = ?, exit_time = ?, status = ?, pnl = ?, close_reason = ?
	WHERE id = ?`

	var exitTime sql.NullInt64
	if !pos.ExitTime.IsZero() {
		exitTime = sql.NullInt64{Int64: pos.ExitTime.UnixNano(), Valid: true}
	}
	var reason sql.NullString
	if pos.CloseReason != "" {
		reason = sql.NullString{String: string(pos.CloseReason), Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query, pos.ExitPrice, exitTime, pos.Status, pos.PNL, reason, pos.ID)
	if err != nil {
		return fmt.Errorf("failed to update position ID %d: %w: %w", pos.ID, ports.ErrUpdateFailed, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update position ID %d: %w", pos.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("position ID %d not found for update: %w", pos.ID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Position updated", ports.Fields{"positionID": pos.ID, "pair": pos.Pair, "status": pos.Status})
	return nil
}

const positionColumns = `
	id, client_id, pair, direction, volume, entry_price, stop_loss, take_profit, entry_time,
	COALESCE(exit_price, 0), exit_time, status, COALESCE(pnl, 0), close_reason`

// FindOpen returns the open positions of a pair, or of every pair when pair is empty,
// oldest first.
func (r *Repository) FindOpen(ctx context.Context, pair string) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE status = ?`
	args := []interface{}{domain.StatusOpen}
	if pair != "" {
		query += ` AND pair = ?`
		args = append(args, pair)
	}
	query += ` ORDER BY id`
	return r.queryPositions(ctx, query, args...)
}

// ClosedTrades returns every closed position in exit order.
func (r *Repository) ClosedTrades(ctx context.Context) ([]domain.ClosedTrade, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE status = ? ORDER BY exit_time, id`
	positions, err := r.queryPositions(ctx, query, domain.StatusClosed)
	if err != nil {
		return nil, err
	}
	trades := make([]domain.ClosedTrade, len(positions))
	for i, p := range positions {
		trades[i] = p.Trade()
	}
	return trades, nil
}

// OpenPositions counts the open positions of a pair.
func (r *Repository) OpenPositions(ctx context.Context, pair string) (int, error) {
	const query = `SELECT COUNT(*) FROM positions WHERE pair = ? AND status = ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, pair, domain.StatusOpen).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count open positions for pair %s: %w: %w", pair, ports.ErrQueryFailed, err)
	}
	return count, nil
}

// LastClosed returns the most recently closed position of a pair, or nil if none has closed.
func (r *Repository) LastClosed(ctx context.Context, pair string) (*domain.ClosedTrade, error) {
	query := `SELECT ` + positionColumns + `
	FROM positions WHERE pair = ? AND status = ?
	ORDER BY exit_time DESC, id DESC LIMIT 1`

	pos, err := scanPosition(r.db.QueryRowContext(ctx, query, pair, domain.StatusClosed))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query last closed position for pair %s: %w: %w", pair, ports.ErrQueryFailed, err)
	}
	trade := pos.Trade()
	return &trade, nil
}

// GetTotalProfit calculates the sum of PNL for all closed positions.
func (r *Repository) GetTotalProfit(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(SUM(pnl), 0) FROM positions WHERE status = ?`
	var totalProfit float64
	err := r.db.QueryRowContext(ctx, query, domain.StatusClosed).Scan(&totalProfit)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate total profit: %w: %w", ports.ErrQueryFailed, err)
	}
	return totalProfit, nil
}

func (r *Repository) queryPositions(ctx context.Context, query string, args ...interface{}) ([]*domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanPosition scans a row into a domain.Position struct.
func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var direction, status string
	var entryTime int64
	var exitTime sql.NullInt64
	var closeReason sql.NullString
	err := s.Scan(
		&p.ID, &p.ClientID, &p.Pair, &direction, &p.Volume, &p.EntryPrice, &p.StopLoss, &p.TakeProfit, &entryTime,
		&p.ExitPrice, &exitTime, &status, &p.PNL, &closeReason)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	p.Direction = domain.Direction(direction)
	p.Status = domain.PositionStatus(status)
	p.EntryTime = time.Unix(0, entryTime).UTC()
	if exitTime.Valid {
		p.ExitTime = time.Unix(0, exitTime.Int64).UTC()
	}
	if closeReason.Valid {
		p.CloseReason = domain.CloseReason(closeReason.String)
	} else if p.Status == domain.StatusClosed {
		p.CloseReason = domain.CloseReasonUnknown
	}
	return p, nil
}
