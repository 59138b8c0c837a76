// Package cli formats command output for humans or other programs.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/hyperjump/semsearch/internal/loader"
	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is indented JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// maxTextRunes bounds the match text printed in text mode.
const maxTextRunes = 200

// ParseOutputFormat accepts "text", "json" or "" (text).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// QueryOutput is the JSON shape of a query command.
type QueryOutput struct {
	Query   string          `json:"query"`
	TopK    int             `json:"top_k"`
	Matches []*models.Match `json:"matches"`
}

// WriteMatches writes one "score: text" line per match, score rounded to two places.
func WriteMatches(w io.Writer, query string, topK int, matches []*models.Match, format OutputFormat) error {
	if format == OutputJSON {
		if matches == nil {
			matches = []*models.Match{}
		}
		return writeJSON(w, QueryOutput{Query: query, TopK: topK, Matches: matches})
	}
	if len(matches) == 0 {
		_, err := fmt.Fprintf(w, "No matches for %q\n", query)
		return err
	}
	for _, m := range matches {
		text := models.MetadataText(m.Metadata)
		if text == "" {
			text = "(" + m.ID + ")"
		}
		if _, err := fmt.Fprintf(w, "%.2f: %s\n", m.Score, utils.Truncate(text, maxTextRunes)); err != nil {
			return err
		}
	}
	return nil
}

// WriteStats writes index statistics.
func WriteStats(w io.Writer, name string, stats *models.IndexStats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "Index:              %s\n", name)
	fmt.Fprintf(w, "Dimension:          %d\n", stats.Dimension)
	fmt.Fprintf(w, "Index fullness:     %.4f\n", stats.IndexFullness)
	fmt.Fprintf(w, "Total vector count: %d\n", stats.TotalVectorCount)
	namespaces := make([]string, 0, len(stats.Namespaces))
	for ns := range stats.Namespaces {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)
	for _, ns := range namespaces {
		label := ns
		if label == "" {
			label = "(default)"
		}
		if _, err := fmt.Fprintf(w, "  namespace %s: %d vectors\n", label, stats.Namespaces[ns].VectorCount); err != nil {
			return err
		}
	}
	return nil
}

// WriteLoadResult writes the summary of a bulk load.
func WriteLoadResult(w io.Writer, res *loader.Result, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	_, err := fmt.Fprintf(w,
		"Loaded %d documents in %d batches: %d skipped, %d committed, %d retries (%s)\n",
		res.Documents, res.Batches, res.Skipped, res.Committed, res.Retries,
		res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
