package modelhandler

import (
	"context"
	"fmt"
)

// LLMPrompt is one completion request: a system instruction and a user
// message. Task bodies build these; the backend only ever sees the
// assembled strings.
type LLMPrompt struct {
	System string
	User   string
}

// LLMBackend calls an HTTP chat-completion endpoint for summarisation and
// other free-text generation tasks.
type LLMBackend struct {
	cfg       HTTPClientConfig
	batchSize int
}

// NewLLMBackend builds an LLM completion backend. Requests are sent one at
// a time (batchSize=1): chat endpoints do not batch independent
// conversations into one call.
func NewLLMBackend(cfg HTTPClientConfig) *LLMBackend {
	return &LLMBackend{cfg: cfg, batchSize: 1}
}

func (l *LLMBackend) Load(ctx context.Context) error { return Ping(ctx, l.cfg) }
func (l *LLMBackend) Unload(ctx context.Context)     {}
func (l *LLMBackend) BatchSize() int                 { return l.batchSize }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReq struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResp struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Infer runs each prompt through the completion endpoint, returning the
// assistant's reply text.
func (l *LLMBackend) Infer(ctx context.Context, items []LLMPrompt) ([]string, []error) {
	out := make([]string, len(items))
	errs := make([]error, len(items))
	for i, p := range items {
		req := chatReq{
			Model: l.cfg.Model,
			Messages: []chatMessage{
				{Role: "system", Content: p.System},
				{Role: "user", Content: p.User},
			},
		}
		var resp chatResp
		if err := postJSON(ctx, l.cfg, req, &resp); err != nil {
			errs[i] = fmt.Errorf("llm: %w", err)
			continue
		}
		if len(resp.Choices) == 0 {
			errs[i] = fmt.Errorf("llm: empty response")
			continue
		}
		out[i] = resp.Choices[0].Message.Content
	}
	return out, errs
}
