// Package query implements the query engine (spec component C8): tokenise
// a free-text query, vectorise it for both vector spaces, fan out to the
// full-text store and both vector collections, fuse the ranked lists with
// reciprocal-rank fusion, and expand each surviving hit to a located
// result carrying its highlight.
package query

import (
	"regexp"
	"strings"
)

// punctuation strips ASCII punctuation plus the full-width CJK punctuation
// marks commonly adjacent to CJK text with no intervening whitespace.
var punctuation = regexp.MustCompile(`[\p{P}\x{3000}-\x{303F}\x{FF00}-\x{FFEF}]+`)

// Tokenizer lowercases, strips punctuation, removes stopwords on word
// boundaries, splits on whitespace, and dedupes preserving first-seen
// order. The index writer and the query engine must use the same
// tokenizer, or full-text search degrades to near-misses.
type Tokenizer struct {
	stopwords map[string]bool
}

// NewTokenizer builds a Tokenizer over the given stopword set. Stopwords
// are matched case-insensitively after lowercasing.
func NewTokenizer(stopwords map[string]bool) Tokenizer {
	lower := make(map[string]bool, len(stopwords))
	for w := range stopwords {
		lower[strings.ToLower(w)] = true
	}
	return Tokenizer{stopwords: lower}
}

// Tokenize reduces text to its deduped, stopword-free token list.
func (t Tokenizer) Tokenize(text string) []string {
	cleaned := punctuation.ReplaceAllString(strings.ToLower(text), " ")
	fields := strings.Fields(cleaned)

	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, w := range fields {
		if t.stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
