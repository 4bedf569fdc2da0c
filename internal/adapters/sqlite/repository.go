// Package sqlite implements the trade journal on SQLite. The journal is an
// append-only record of completed trades across all subscribers; writes are
// best-effort from the executor's point of view.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"copyTradeEngine/internal/domain"
	"copyTradeEngine/internal/ports"
)

// Repository implements ports.TradeRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository opens (creating if needed) the journal database.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trade_journal.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: ping database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite serializes writes anyway; a single connection avoids
	// SQLITE_BUSY churn in the Go driver.
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

	cfg.Logger.Info(context.Background(), "trade journal opened", map[string]interface{}{"path": dbPath})
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trade_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		strategy_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		quantity REAL NOT NULL,
		leverage INTEGER NOT NULL,
		pnl REAL NOT NULL,
		pnl_pct REAL NOT NULL,
		commission REAL NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NOT NULL,
		close_reason TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trade_history_user_exit_time ON trade_history (user_id, exit_time);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateTrade appends a completed trade and returns its assigned ID.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	const query = `
	INSERT INTO trade_history (user_id, strategy_id, symbol, side, entry_price, exit_price,
	                           quantity, leverage, pnl, pnl_pct, commission, entry_time, exit_time, close_reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		trade.UserID, trade.StrategyID, trade.Symbol, string(trade.Side),
		trade.EntryPrice, trade.ExitPrice, trade.Quantity, trade.Leverage,
		trade.PNL, trade.PNLPct, trade.Commission, trade.EntryTime, trade.ExitTime, string(trade.Reason))
	if err != nil {
		return 0, fmt.Errorf("%w: insert trade for user %s: %v", ports.ErrQueryFailed, trade.UserID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: last insert id for user %s: %v", ports.ErrQueryFailed, trade.UserID, err)
	}
	trade.ID = id
	r.logger.Debug(ctx, "trade journaled", map[string]interface{}{
		"tradeID": id, "user_id": trade.UserID, "symbol": trade.Symbol, "pnl": trade.PNL,
	})
	return id, nil
}

// FindByUser retrieves the most recent trades for a user, newest first.
func (r *Repository) FindByUser(ctx context.Context, userID string, limit int) ([]*domain.Trade, error) {
	const query = `
	SELECT id, user_id, strategy_id, symbol, side, entry_price, exit_price,
	       quantity, leverage, pnl, pnl_pct, commission, entry_time, exit_time, close_reason
	FROM trade_history
	WHERE user_id = ? ORDER BY exit_time DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query trades for user %s: %v", ports.ErrQueryFailed, userID, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan trade for user %s: %v", ports.ErrQueryFailed, userID, err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate trades for user %s: %v", ports.ErrQueryFailed, userID, err)
	}
	return trades, nil
}

// CountTodayByUser counts the trades recorded today for a user.
func (r *Repository) CountTodayByUser(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM trade_history WHERE user_id = ? AND date(exit_time) = date('now', 'localtime')`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count trades today for user %s: %v", ports.ErrQueryFailed, userID, err)
	}
	return count, nil
}

// scanner is compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var side, reason string
	err := s.Scan(
		&t.ID, &t.UserID, &t.StrategyID, &t.Symbol, &side, &t.EntryPrice, &t.ExitPrice,
		&t.Quantity, &t.Leverage, &t.PNL, &t.PNLPct, &t.Commission, &t.EntryTime, &t.ExitTime, &reason)
	if err != nil {
		return nil, err
	}
	t.Side = domain.Side(side)
	t.Reason = domain.ExitReason(reason)
	return t, nil
}
