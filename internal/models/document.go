// Package models defines core data structures for documents, batches, index stats, and matches.
package models

// Document is a pre-vectorized record ready to be upserted into a vector index.
// Documents are produced by dataset preparation and never mutated afterwards.
type Document struct {
	ID       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Text returns the "text" metadata value, or "" when absent.
func (d *Document) Text() string {
	return MetadataText(d.Metadata)
}

// Batch is a contiguous slice of the document sequence sized for one upsert call.
// Batch Index i covers documents [i*size, (i+1)*size).
type Batch struct {
	Index     int
	Documents []*Document
}

// Len returns the number of documents in the batch.
func (b Batch) Len() int {
	return len(b.Documents)
}

// MetadataText returns metadata["text"] as a string, or "" when absent or not a string.
func MetadataText(metadata map[string]interface{}) string {
	if metadata == nil {
		return ""
	}
	if s, ok := metadata["text"].(string); ok {
		return s
	}
	return ""
}
