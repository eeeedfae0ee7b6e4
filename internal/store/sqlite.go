// Package store persists generated signals and backtest results in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"quantsignals/internal/backtest"
	"quantsignals/internal/signal"
)

const schema = `
CREATE TABLE IF NOT EXISTS signals (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol       TEXT    NOT NULL,
	type         TEXT    NOT NULL,
	strength     REAL    NOT NULL,
	confidence   REAL    NOT NULL,
	source       TEXT    NOT NULL,
	generated_at INTEGER NOT NULL,
	expiration   INTEGER NOT NULL,
	explanation  TEXT    NOT NULL DEFAULT '',
	news_title   TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_signals_symbol_generated
	ON signals (symbol, generated_at DESC);

CREATE TABLE IF NOT EXISTS backtests (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	strategy_name   TEXT    NOT NULL,
	strategy_type   TEXT    NOT NULL,
	total_return    REAL    NOT NULL,
	sharpe_ratio    REAL    NOT NULL,
	max_drawdown    REAL    NOT NULL,
	win_rate        REAL    NOT NULL,
	trade_count     INTEGER NOT NULL,
	executed_at     INTEGER NOT NULL,
	result_json     BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_backtests_executed
	ON backtests (executed_at DESC);
`

// BacktestSummary is one row of the backtests listing, without the full
// serialized result.
type BacktestSummary struct {
	ID           int64
	StrategyName string
	StrategyType string
	TotalReturn  float64
	SharpeRatio  float64
	MaxDrawdown  float64
	WinRate      float64
	TradeCount   int
	ExecutedAt   time.Time
}

// SQLiteStore persists signals and backtest results. Safe for concurrent
// use; database/sql serializes access to the single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	// The file-backed driver does not tolerate concurrent writers on
	// separate connections.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSignal appends one generated signal.
func (s *SQLiteStore) SaveSignal(ctx context.Context, sig signal.Signal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (symbol, type, strength, confidence, source, generated_at, expiration, explanation, news_title)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.Symbol, string(sig.Type), sig.Strength, sig.Confidence, string(sig.Source),
		sig.GeneratedAt.UnixMilli(), sig.Expiration.UnixMilli(), sig.Explanation, sig.NewsTitle,
	)
	if err != nil {
		return fmt.Errorf("save signal %s: %w", sig.Symbol, err)
	}
	return nil
}

// RecentSignals returns signals generated at or after since, newest first.
// An empty symbol returns signals for all symbols.
func (s *SQLiteStore) RecentSignals(ctx context.Context, symbol string, since time.Time) ([]signal.Signal, error) {
	query := `
		SELECT symbol, type, strength, confidence, source, generated_at, expiration, explanation, news_title
		FROM signals WHERE generated_at >= ?`
	args := []any{since.UnixMilli()}
	if symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY generated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent signals: %w", err)
	}
	defer rows.Close()

	var out []signal.Signal
	for rows.Next() {
		var sig signal.Signal
		var generatedAt, expiration int64
		var sigType, source string
		if err := rows.Scan(&sig.Symbol, &sigType, &sig.Strength, &sig.Confidence, &source,
			&generatedAt, &expiration, &sig.Explanation, &sig.NewsTitle); err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		sig.Type = signal.Type(sigType)
		sig.Source = signal.Source(source)
		sig.GeneratedAt = time.UnixMilli(generatedAt).UTC()
		sig.Expiration = time.UnixMilli(expiration).UTC()
		out = append(out, sig)
	}
	return out, rows.Err()
}

// SaveBacktest persists a completed run: headline numbers as columns for
// listing, the full result as JSON for replay.
func (s *SQLiteStore) SaveBacktest(ctx context.Context, result *backtest.Result) (int64, error) {
	blob, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("encode backtest result: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO backtests (strategy_name, strategy_type, total_return, sharpe_ratio, max_drawdown, win_rate, trade_count, executed_at, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.Config.StrategyName, result.Config.StrategyType,
		result.Performance.TotalReturn, result.Performance.SharpeRatio,
		result.Performance.MaxDrawdown, result.Performance.WinRate,
		len(result.Trades), result.ExecutedAt.UnixMilli(), blob,
	)
	if err != nil {
		return 0, fmt.Errorf("save backtest: %w", err)
	}
	return res.LastInsertId()
}

// GetBacktest loads a full stored result by id.
func (s *SQLiteStore) GetBacktest(ctx context.Context, id int64) (*backtest.Result, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT result_json FROM backtests WHERE id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("backtest %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load backtest %d: %w", id, err)
	}
	var result backtest.Result
	if err := json.Unmarshal(blob, &result); err != nil {
		return nil, fmt.Errorf("decode backtest %d: %w", id, err)
	}
	return &result, nil
}

// ListBacktests returns run summaries, newest first, up to limit.
func (s *SQLiteStore) ListBacktests(ctx context.Context, limit int) ([]BacktestSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy_name, strategy_type, total_return, sharpe_ratio, max_drawdown, win_rate, trade_count, executed_at
		FROM backtests ORDER BY executed_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list backtests: %w", err)
	}
	defer rows.Close()

	var out []BacktestSummary
	for rows.Next() {
		var row BacktestSummary
		var executedAt int64
		if err := rows.Scan(&row.ID, &row.StrategyName, &row.StrategyType, &row.TotalReturn,
			&row.SharpeRatio, &row.MaxDrawdown, &row.WinRate, &row.TradeCount, &executedAt); err != nil {
			return nil, fmt.Errorf("scan backtest row: %w", err)
		}
		row.ExecutedAt = time.UnixMilli(executedAt).UTC()
		out = append(out, row)
	}
	return out, rows.Err()
}
