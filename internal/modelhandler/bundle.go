package modelhandler

import (
	"context"
	"fmt"
	"time"
)

// DefaultSmallModelIdle and DefaultEmbeddingIdle are the two idle-offload
// windows the handler bundle configures: short for small/cheap models
// (caption, ASR, LLM), long for embedding models that are expensive to
// reload.
const (
	DefaultSmallModelIdle = 5 * time.Second
	DefaultEmbeddingIdle  = 10 * time.Minute
)

// Bundle holds the six model-handler roles the engine is parametrised with.
// A nil field means that role has no backing handler; tasks that need it
// fail with "model unavailable".
type Bundle struct {
	ImageCaption       *Handler[CaptionInput, string]
	AudioTranscript    *Handler[[]float32, []TranscriptSegment]
	TextEmbedding      *Handler[string, []float32]
	MultiModalEmbedding *Handler[string, []float32]
	LLM                *Handler[LLMPrompt, string]
	Tokenizer          *Handler[string, int]
}

// ErrModelUnavailable is returned when a task needs a handler role the
// bundle does not have configured.
var ErrModelUnavailable = fmt.Errorf("modelhandler: model unavailable")

// RequireImageCaption returns the caption handler or ErrModelUnavailable.
func (b *Bundle) RequireImageCaption() (*Handler[CaptionInput, string], error) {
	if b == nil || b.ImageCaption == nil {
		return nil, ErrModelUnavailable
	}
	return b.ImageCaption, nil
}

// RequireAudioTranscript returns the ASR handler or ErrModelUnavailable.
func (b *Bundle) RequireAudioTranscript() (*Handler[[]float32, []TranscriptSegment], error) {
	if b == nil || b.AudioTranscript == nil {
		return nil, ErrModelUnavailable
	}
	return b.AudioTranscript, nil
}

// RequireTextEmbedding returns the text embedding handler or ErrModelUnavailable.
func (b *Bundle) RequireTextEmbedding() (*Handler[string, []float32], error) {
	if b == nil || b.TextEmbedding == nil {
		return nil, ErrModelUnavailable
	}
	return b.TextEmbedding, nil
}

// RequireMultiModalEmbedding returns the multi-modal embedding handler or ErrModelUnavailable.
func (b *Bundle) RequireMultiModalEmbedding() (*Handler[string, []float32], error) {
	if b == nil || b.MultiModalEmbedding == nil {
		return nil, ErrModelUnavailable
	}
	return b.MultiModalEmbedding, nil
}

// RequireLLM returns the LLM handler or ErrModelUnavailable.
func (b *Bundle) RequireLLM() (*Handler[LLMPrompt, string], error) {
	if b == nil || b.LLM == nil {
		return nil, ErrModelUnavailable
	}
	return b.LLM, nil
}

// RequireTokenizer returns the tokenizer handler or ErrModelUnavailable.
func (b *Bundle) RequireTokenizer() (*Handler[string, int], error) {
	if b == nil || b.Tokenizer == nil {
		return nil, ErrModelUnavailable
	}
	return b.Tokenizer, nil
}

// Shutdown releases every configured handler. Safe to call with a partially
// populated bundle.
func (b *Bundle) Shutdown(ctx context.Context) {
	if b == nil {
		return
	}
	if b.ImageCaption != nil {
		b.ImageCaption.Shutdown(ctx)
	}
	if b.AudioTranscript != nil {
		b.AudioTranscript.Shutdown(ctx)
	}
	if b.TextEmbedding != nil {
		b.TextEmbedding.Shutdown(ctx)
	}
	if b.MultiModalEmbedding != nil {
		b.MultiModalEmbedding.Shutdown(ctx)
	}
	if b.LLM != nil {
		b.LLM.Shutdown(ctx)
	}
	if b.Tokenizer != nil {
		b.Tokenizer.Shutdown(ctx)
	}
}
