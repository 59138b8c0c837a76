// Package dataset stores the ordered, pre-vectorized document snapshot the loader reads.
package dataset

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/pkg/utils"
)

// Snapshot is a SQLite-backed document sequence. Documents come back in the order they
// were appended, which keeps batch boundaries identical across load runs.
type Snapshot struct {
	db *sql.DB
}

// OpenSnapshot opens or creates a snapshot at dbPath. Parent directories are created
// if they do not exist.
func OpenSnapshot(dbPath string) (*Snapshot, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Snapshot{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		position INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		dimension INTEGER NOT NULL,
		vector BLOB NOT NULL,
		metadata TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_documents_id ON documents(id);
	`
	_, err := db.Exec(schema)
	return err
}

// Append adds docs after the existing documents in one transaction.
func (s *Snapshot) Append(ctx context.Context, docs []*models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (id, dimension, vector, metadata) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, doc := range docs {
		var metadataJSON []byte
		if doc.Metadata != nil {
			if metadataJSON, err = json.Marshal(doc.Metadata); err != nil {
				return fmt.Errorf("failed to marshal metadata for %s: %w", doc.ID, err)
			}
		}
		if _, err := stmt.ExecContext(ctx,
			doc.ID, len(doc.Values), utils.Float32sToBytes(doc.Values), string(metadataJSON),
		); err != nil {
			return fmt.Errorf("failed to insert %s: %w", doc.ID, err)
		}
	}
	return tx.Commit()
}

// Documents returns every document in append order.
func (s *Snapshot) Documents(ctx context.Context) ([]*models.Document, error) {
	return s.list(ctx, `SELECT id, vector, metadata FROM documents ORDER BY position`)
}

// Range returns up to limit documents starting at offset, in append order.
func (s *Snapshot) Range(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	return s.list(ctx,
		`SELECT id, vector, metadata FROM documents ORDER BY position LIMIT ? OFFSET ?`,
		limit, offset,
	)
}

func (s *Snapshot) list(ctx context.Context, query string, args ...interface{}) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		var vector []byte
		var metadataJSON sql.NullString
		if err := rows.Scan(&doc.ID, &vector, &metadataJSON); err != nil {
			return nil, err
		}
		doc.Values = utils.BytesToFloat32s(vector)
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", doc.ID, err)
			}
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// Count returns the number of documents.
func (s *Snapshot) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// Dimension returns the vector dimension of the first document, 0 when empty.
func (s *Snapshot) Dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx, `SELECT dimension FROM documents ORDER BY position LIMIT 1`).Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return dim, err
}

// Reset removes every document.
func (s *Snapshot) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents`)
	return err
}

// Close closes the database connection.
func (s *Snapshot) Close() error {
	return s.db.Close()
}
