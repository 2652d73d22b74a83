package modelhandler

import (
	"context"
	"fmt"
)

// EmbeddingBackend calls an HTTP embedding endpoint, one item per request by
// default since many local embedding servers (llama.cpp-based ones
// included) crash on multi-item batches; batch_size_limit is therefore 1
// unless BatchSize is overridden.
type EmbeddingBackend struct {
	cfg       HTTPClientConfig
	dimension int
	batchSize int
}

// NewEmbeddingBackend builds a text or multi-modal-as-text embedding
// backend. dimension is the vector width the caller expects back; Infer
// returns an error for any item whose response vector doesn't match it.
func NewEmbeddingBackend(cfg HTTPClientConfig, dimension int) *EmbeddingBackend {
	return &EmbeddingBackend{cfg: cfg, dimension: dimension, batchSize: 1}
}

func (e *EmbeddingBackend) Load(ctx context.Context) error   { return Ping(ctx, e.cfg) }
func (e *EmbeddingBackend) Unload(ctx context.Context)       {}
func (e *EmbeddingBackend) BatchSize() int                   { return e.batchSize }

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Infer embeds each text in items, returning one vector per item.
func (e *EmbeddingBackend) Infer(ctx context.Context, items []string) ([][]float32, []error) {
	out := make([][]float32, len(items))
	errs := make([]error, len(items))

	var resp embedResp
	err := postJSON(ctx, e.cfg, embedReq{Model: e.cfg.Model, Input: items}, &resp)
	if err != nil {
		for i := range items {
			errs[i] = fmt.Errorf("embed: %w", err)
		}
		return out, errs
	}
	if len(resp.Data) != len(items) {
		for i := range items {
			errs[i] = fmt.Errorf("embed: expected %d vectors, got %d", len(items), len(resp.Data))
		}
		return out, errs
	}
	for i, d := range resp.Data {
		if e.dimension > 0 && len(d.Embedding) != e.dimension {
			errs[i] = fmt.Errorf("embed: expected dimension %d, got %d", e.dimension, len(d.Embedding))
			continue
		}
		out[i] = d.Embedding
	}
	return out, errs
}

// Dimension returns the configured vector width.
func (e *EmbeddingBackend) Dimension() int { return e.dimension }
