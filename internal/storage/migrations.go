package storage

import (
	"context"
	"fmt"
)

// migrations run in order; schema_version tracks the last applied index.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS style_signals (
		item_id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		generated_at TIMESTAMP,
		expires_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS safety_verdicts (
		request_key TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		created_at TIMESTAMP,
		expires_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_style_signals_expires ON style_signals(expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_safety_verdicts_expires ON safety_verdicts(expires_at)`,
	// Rows persisted before this column existed have an unknown mode;
	// default them to observe-only rather than apply.
	`ALTER TABLE safety_verdicts ADD COLUMN effective_dry_run INTEGER NOT NULL DEFAULT 1`,
}

// Migrate applies any pending schema migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
