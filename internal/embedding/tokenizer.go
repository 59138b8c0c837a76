package embedding

import (
	"hash/fnv"
	"strings"
	"unicode"
)

// BERT special token ids and vocabulary size used by MiniLM models.
const (
	clsToken  = 101
	sepToken  = 102
	vocabSize = 30522
	// ids below firstWordID are reserved for special and unused tokens
	firstWordID = 1000
)

// Encoding holds model inputs for a single sequence, padded to a fixed length.
type Encoding struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
}

// Tokenizer maps text to model inputs of exactly maxTokens positions.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) Encoding
}

// WordTokenizer lowercases text, splits it into words, and hashes each word into the
// vocabulary. It does not reproduce WordPiece ids.
type WordTokenizer struct{}

// Tokenize wraps the words in [CLS] and [SEP] and pads with zeros.
func (WordTokenizer) Tokenize(text string, maxTokens int) Encoding {
	if maxTokens < 2 {
		maxTokens = 2
	}
	enc := Encoding{
		InputIDs:      make([]int64, maxTokens),
		AttentionMask: make([]int64, maxTokens),
		TokenTypeIDs:  make([]int64, maxTokens),
	}
	enc.InputIDs[0] = clsToken
	enc.AttentionMask[0] = 1
	pos := 1
	for _, w := range Words(text) {
		if pos >= maxTokens-1 {
			break
		}
		enc.InputIDs[pos] = wordID(w)
		enc.AttentionMask[pos] = 1
		pos++
	}
	enc.InputIDs[pos] = sepToken
	enc.AttentionMask[pos] = 1
	return enc
}

// Words returns the lowercased letter and digit runs of text.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func wordID(w string) int64 {
	return firstWordID + int64(hash64(w)%uint64(vocabSize-firstWordID))
}

func hash64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
