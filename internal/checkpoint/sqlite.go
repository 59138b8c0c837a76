package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the checkpoint database at dbPath.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS load_checkpoints (
	index_name TEXT PRIMARY KEY,
	batch_size INTEGER NOT NULL,
	last_committed INTEGER NOT NULL DEFAULT -1,
	failed_batch INTEGER NOT NULL DEFAULT -1,
	failure_reason TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMP NOT NULL
);
`

// Get returns the recorded state for index, or nil when there is none.
func (s *SQLiteStore) Get(ctx context.Context, index string) (*State, error) {
	st := State{Index: index}
	err := s.db.QueryRowContext(ctx,
		`SELECT batch_size, last_committed, failed_batch, failure_reason, updated_at
		 FROM load_checkpoints WHERE index_name = ?`, index,
	).Scan(&st.BatchSize, &st.LastCommitted, &st.FailedBatch, &st.FailureReason, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", index, err)
	}
	return &st, nil
}

// MarkCommitted records batch as the last committed one.
func (s *SQLiteStore) MarkCommitted(ctx context.Context, index string, batchSize, batch int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO load_checkpoints (index_name, batch_size, last_committed, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(index_name) DO UPDATE SET
			batch_size = excluded.batch_size,
			last_committed = excluded.last_committed,
			failed_batch = CASE WHEN load_checkpoints.failed_batch <= excluded.last_committed
				THEN -1 ELSE load_checkpoints.failed_batch END,
			failure_reason = CASE WHEN load_checkpoints.failed_batch <= excluded.last_committed
				THEN '' ELSE load_checkpoints.failure_reason END,
			updated_at = excluded.updated_at`,
		index, batchSize, batch, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark batch %d committed: %w", batch, err)
	}
	return nil
}

// MarkFailed records batch as failed after exhausting its retries.
func (s *SQLiteStore) MarkFailed(ctx context.Context, index string, batchSize, batch int, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO load_checkpoints (index_name, batch_size, failed_batch, failure_reason, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(index_name) DO UPDATE SET
			batch_size = excluded.batch_size,
			failed_batch = excluded.failed_batch,
			failure_reason = excluded.failure_reason,
			updated_at = excluded.updated_at`,
		index, batchSize, batch, reason, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark batch %d failed: %w", batch, err)
	}
	return nil
}

// Reset forgets all progress for index.
func (s *SQLiteStore) Reset(ctx context.Context, index string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM load_checkpoints WHERE index_name = ?`, index)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
