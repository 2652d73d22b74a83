package modelhandler

import (
	"context"
	"encoding/base64"
	"fmt"
)

// CaptionInput is one image to describe, grounded on its raw bytes so the
// backend never needs storage access of its own.
type CaptionInput struct {
	Data []byte
}

// CaptionBackend calls an HTTP image-captioning endpoint, the same request
// shape as EmbeddingBackend but carrying base64 image data instead of text.
type CaptionBackend struct {
	cfg       HTTPClientConfig
	batchSize int
}

// NewCaptionBackend builds an image-caption backend.
func NewCaptionBackend(cfg HTTPClientConfig) *CaptionBackend {
	return &CaptionBackend{cfg: cfg, batchSize: 1}
}

func (c *CaptionBackend) Load(ctx context.Context) error { return Ping(ctx, c.cfg) }
func (c *CaptionBackend) Unload(ctx context.Context)     {}
func (c *CaptionBackend) BatchSize() int                 { return c.batchSize }

type captionReq struct {
	Model string   `json:"model"`
	Image string   `json:"image"`
}

type captionResp struct {
	Caption string `json:"caption"`
}

// Infer produces one caption per input image.
func (c *CaptionBackend) Infer(ctx context.Context, items []CaptionInput) ([]string, []error) {
	out := make([]string, len(items))
	errs := make([]error, len(items))
	for i, item := range items {
		var resp captionResp
		req := captionReq{Model: c.cfg.Model, Image: base64.StdEncoding.EncodeToString(item.Data)}
		if err := postJSON(ctx, c.cfg, req, &resp); err != nil {
			errs[i] = fmt.Errorf("caption: %w", err)
			continue
		}
		out[i] = resp.Caption
	}
	return out, errs
}
