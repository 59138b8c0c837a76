package dataset

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/docid"
	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/pkg/utils"
)

const (
	defaultImportBatch = 1000
	maxLineBytes       = 16 << 20
)

// ImportOptions selects and validates the rows of an import.
type ImportOptions struct {
	// Offset skips that many rows first.
	Offset int
	// Limit caps the number of rows imported; zero means no cap.
	Limit int
	// Dimension, when positive, is required of every vector. Otherwise the first
	// imported row sets it.
	Dimension int
	// BatchSize is the number of rows appended per transaction.
	BatchSize int
	Logger    *zap.Logger
}

// row is one JSONL line. Rows exported from the hosted dataset carry the document
// metadata under "blob"; it is used when "metadata" is absent.
type row struct {
	ID       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata map[string]interface{} `json:"metadata"`
	Blob     map[string]interface{} `json:"blob"`
}

// ImportJSONL appends the rows of r to snap and returns the number imported.
// Rows without an id get one derived from their text.
func ImportJSONL(ctx context.Context, r io.Reader, snap *Snapshot, opts ImportOptions) (int, error) {
	if opts.Offset < 0 || opts.Limit < 0 {
		return 0, errors.New("offset and limit must not be negative")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultImportBatch
	}
	logger := utils.OrNop(opts.Logger)
	dim := opts.Dimension

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	var (
		line, seen, imported int
		pending              []*models.Document
	)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := snap.Append(ctx, pending); err != nil {
			return err
		}
		imported += len(pending)
		logger.Debug("appended rows", zap.Int("rows", len(pending)), zap.Int("imported", imported))
		pending = pending[:0]
		return nil
	}

	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		seen++
		if seen <= opts.Offset {
			continue
		}
		if opts.Limit > 0 && imported+len(pending) >= opts.Limit {
			break
		}
		doc, err := parseRow(scanner.Bytes())
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		if dim == 0 {
			dim = len(doc.Values)
		}
		if len(doc.Values) != dim {
			return imported, fmt.Errorf("line %d: document %s has dimension %d, expected %d", line, doc.ID, len(doc.Values), dim)
		}
		pending = append(pending, doc)
		if len(pending) >= opts.BatchSize {
			if err := flush(); err != nil {
				return imported, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return imported, fmt.Errorf("read rows: %w", err)
	}
	if err := flush(); err != nil {
		return imported, err
	}
	logger.Info("imported rows", zap.Int("imported", imported), zap.Int("dimension", dim))
	return imported, nil
}

func parseRow(b []byte) (*models.Document, error) {
	var r row
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	if len(r.Values) == 0 {
		return nil, errors.New("row has no values")
	}
	metadata := r.Metadata
	if metadata == nil {
		metadata = r.Blob
	}
	id := r.ID
	if id == "" {
		id = docid.FromText(models.MetadataText(metadata))
	}
	return &models.Document{ID: id, Values: r.Values, Metadata: metadata}, nil
}
