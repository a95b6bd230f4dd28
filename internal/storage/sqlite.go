// Package storage implements the durable signal and verdict stores on
// SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/outfitlab/matchflow/internal/common"
	"github.com/outfitlab/matchflow/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements service.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetSignals returns the persisted fingerprint for an item, or ErrNotFound
// / ErrExpired. Expired rows are never treated as valid.
func (s *SQLiteStore) GetSignals(ctx context.Context, itemID string) (*model.StyleSignals, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(itemID, "itemID"); err != nil {
		return nil, err
	}

	var payload string
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM style_signals WHERE item_id = ?`,
		itemID).Scan(&payload, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}

	if time.Now().After(expiresAt) {
		return nil, common.ErrExpired
	}

	var row signalRow
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
		return nil, fmt.Errorf("failed to decode signals for %s: %w", itemID, err)
	}
	return row.toModel(), nil
}

// SaveSignals upserts the fingerprint for an item with its expiry.
func (s *SQLiteStore) SaveSignals(ctx context.Context, itemID string, signals *model.StyleSignals, expiresAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(itemID, "itemID"); err != nil {
		return err
	}
	if signals == nil {
		return fmt.Errorf("signals must not be nil")
	}

	payload, err := json.Marshal(newSignalRow(signals))
	if err != nil {
		return fmt.Errorf("failed to encode signals: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO style_signals (item_id, payload, generated_at, expires_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(item_id) DO UPDATE SET
		   payload = excluded.payload,
		   generated_at = excluded.generated_at,
		   expires_at = excluded.expires_at`,
		itemID, string(payload), signals.GeneratedAt, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to save signals: %w", err)
	}
	return nil
}

// GetVerdicts returns persisted safety verdicts for a request key with the
// effective mode the server negotiated when they were issued, or
// ErrNotFound / ErrExpired.
func (s *SQLiteStore) GetVerdicts(ctx context.Context, requestKey string) ([]model.SafetyVerdict, bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, false, err
	}
	if err := validateString(requestKey, "requestKey"); err != nil {
		return nil, false, err
	}

	var payload string
	var expiresAt time.Time
	var effectiveDryRun bool
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, expires_at, effective_dry_run FROM safety_verdicts WHERE request_key = ?`,
		requestKey).Scan(&payload, &expiresAt, &effectiveDryRun)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, common.ErrNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query verdicts: %w", err)
	}

	if time.Now().After(expiresAt) {
		return nil, false, common.ErrExpired
	}

	var rows []verdictRow
	if err := json.Unmarshal([]byte(payload), &rows); err != nil {
		return nil, false, fmt.Errorf("failed to decode verdicts for %s: %w", requestKey, err)
	}

	verdicts := make([]model.SafetyVerdict, len(rows))
	for i, r := range rows {
		verdicts[i] = r.toModel()
	}
	return verdicts, effectiveDryRun, nil
}

// SaveVerdicts upserts a verdict batch under its request key, recording the
// server-negotiated effective mode alongside it.
func (s *SQLiteStore) SaveVerdicts(ctx context.Context, requestKey string, verdicts []model.SafetyVerdict, effectiveDryRun bool, expiresAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(requestKey, "requestKey"); err != nil {
		return err
	}

	rows := make([]verdictRow, len(verdicts))
	for i, v := range verdicts {
		rows[i] = newVerdictRow(v)
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode verdicts: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO safety_verdicts (request_key, payload, created_at, expires_at, effective_dry_run)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(request_key) DO UPDATE SET
		   payload = excluded.payload,
		   created_at = excluded.created_at,
		   expires_at = excluded.expires_at,
		   effective_dry_run = excluded.effective_dry_run`,
		requestKey, string(payload), time.Now().UTC(), expiresAt, effectiveDryRun)
	if err != nil {
		return fmt.Errorf("failed to save verdicts: %w", err)
	}
	return nil
}

// PruneExpired deletes rows past their expiry. Reads already refuse
// expired rows; pruning just keeps the file small.
func (s *SQLiteStore) PruneExpired(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	now := time.Now()
	total := int64(0)
	for _, table := range []string{"style_signals", "safety_verdicts"} {
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= ?`, table), now)
		if err != nil {
			return total, fmt.Errorf("failed to prune %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}
