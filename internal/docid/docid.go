// Package docid derives document ids for imported rows that arrive without one.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

const prefix = "doc:"

// FromText returns a stable id for a document's text. Same text, same id, so a
// re-import keeps ids stable and upserts stay idempotent.
// Text that is empty after trimming has nothing to hash and gets a random id.
func FromText(text string) string {
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		return Random()
	}
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:16])
}

// Random returns a new random id.
func Random() string {
	return prefix + uuid.NewString()
}
