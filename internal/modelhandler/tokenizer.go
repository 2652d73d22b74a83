package modelhandler

import "context"

// TokenizerBackend counts tokens using the chars/4 heuristic the chunking
// and summarisation tasks need; it requires no load/unload step since it
// has no external resource.
type TokenizerBackend struct{}

// NewTokenizerBackend returns a stateless tokenizer handler backend.
func NewTokenizerBackend() *TokenizerBackend { return &TokenizerBackend{} }

func (TokenizerBackend) Load(ctx context.Context) error { return nil }
func (TokenizerBackend) Unload(ctx context.Context)     {}
func (TokenizerBackend) BatchSize() int                 { return 0 }

// Infer returns an estimated token count for each input string.
func (TokenizerBackend) Infer(ctx context.Context, items []string) ([]int, []error) {
	out := make([]int, len(items))
	errs := make([]error, len(items))
	for i, s := range items {
		out[i] = EstimateTokens(s)
	}
	return out, errs
}

// EstimateTokens is the chars/4 heuristic used as a cheap stand-in for a
// real subword tokenizer, matching the fallback the corpus uses when exact
// tokenization is unavailable.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return len([]rune(s))/4 + 1
}
