package loader

import "github.com/hyperjump/semsearch/internal/models"

// Partition splits docs into consecutive batches of size documents; the last batch may be
// shorter. Batches share the backing array of docs and must not be appended to.
func Partition(docs []*models.Document, size int) []models.Batch {
	if size <= 0 || len(docs) == 0 {
		return nil
	}
	batches := make([]models.Batch, 0, BatchCount(len(docs), size))
	for start, i := 0, 0; start < len(docs); start, i = start+size, i+1 {
		end := start + size
		if end > len(docs) {
			end = len(docs)
		}
		batches = append(batches, models.Batch{Index: i, Documents: docs[start:end:end]})
	}
	return batches
}

// BatchCount returns ceil(n/size).
func BatchCount(n, size int) int {
	if size <= 0 || n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// ResumePoint returns the first batch index not assumed committed given the index's
// reported vector count: floor(count/size). Only valid when ids are stable and the
// batch size and document order match the earlier runs.
func ResumePoint(totalVectorCount int64, size int) int {
	if size <= 0 || totalVectorCount <= 0 {
		return 0
	}
	return int(totalVectorCount / int64(size))
}
