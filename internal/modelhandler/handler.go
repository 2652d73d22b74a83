// Package modelhandler implements the lazy-loaded, idle-offloading model
// capability shared by every inference-backed task: image captioning, audio
// transcription, text/multi-modal embedding, summarisation, and
// tokenization. Each handler owns a single worker goroutine that loads the
// underlying model on first use and releases it after an idle window,
// communicating with callers over a bounded request channel the way the
// teacher's dedicated-thread model handlers do.
package modelhandler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"lumenarchive/internal/telemetry"
)

var handlerTracer = telemetry.Tracer("lumenarchive/modelhandler")

// Batch/item instruments, lazily initialized once a provider is installed,
// mirroring the teacher's ensureTokenInstruments pattern for its own LLM
// token counters.
var (
	metricsOnce    sync.Once
	batchCounter   otelmetric.Int64Counter
	itemCounter    otelmetric.Int64Counter
	failureCounter otelmetric.Int64Counter
)

func ensureHandlerInstruments() {
	metricsOnce.Do(func() {
		m := telemetry.Meter("lumenarchive/modelhandler")
		batchCounter, _ = m.Int64Counter("modelhandler.batches", otelmetric.WithDescription("Batches sent to Infer, by model role"))
		itemCounter, _ = m.Int64Counter("modelhandler.items", otelmetric.WithDescription("Items processed by Infer, by model role"))
		failureCounter, _ = m.Int64Counter("modelhandler.item_failures", otelmetric.WithDescription("Per-item inference failures, by model role"))
	})
}

// requestQueueDepth is the bounded channel capacity every handler uses for
// its request queue, matching the model-handler back-pressure bound used
// throughout the pipeline.
const requestQueueDepth = 512

// ItemFailure marks one item within a batch as failed without aborting the
// rest of the batch.
type ItemFailure struct {
	Index int
	Kind  string
	Err   error
}

func (f *ItemFailure) Error() string {
	return fmt.Sprintf("item %d failed (%s): %v", f.Index, f.Kind, f.Err)
}

// ErrLoadFailed is returned when the underlying model could not be loaded
// for this call; it is fatal for the whole batch.
var ErrLoadFailed = errors.New("modelhandler: model load failed")

// Backend is the polymorphic capability a concrete model (image caption,
// ASR, embedding, LLM, tokenizer) implements. In and Out are backend-
// specific; a Backend only ever sees items already batched to at most
// BatchSize().
type Backend[In, Out any] interface {
	// Load acquires any underlying resource (weights, a subprocess, an HTTP
	// client). Called at most once per idle cycle.
	Load(ctx context.Context) error

	// Unload releases the resource acquired by Load. Called after the idle
	// timeout, or immediately on Shutdown.
	Unload(ctx context.Context)

	// Infer runs the model over one already-loaded batch, returning one
	// result (or error) per input item in order.
	Infer(ctx context.Context, items []In) ([]Out, []error)

	// BatchSize bounds how many items Infer sees in one call.
	BatchSize() int
}

type request[In, Out any] struct {
	ctx     context.Context
	items   []In
	results chan<- batchResult[Out]
}

type batchResult[Out any] struct {
	outputs []Out
	errs    []error
	err     error // set only on whole-batch (LoadFailed) failure
}

// Handler wraps a Backend with the lazy-load/idle-offload lifecycle and a
// dedicated worker goroutine. Handler is safe for concurrent use; all
// actual model access happens on the worker goroutine.
type Handler[In, Out any] struct {
	backend      Backend[In, Out]
	idleTimeout  time.Duration
	role         string
	requests     chan request[In, Out]
	shutdown     chan struct{}
	shutdownDone chan struct{}
}

// Option configures a Handler.
type Option[In, Out any] func(*Handler[In, Out])

// WithIdleTimeout overrides the default idle-offload window.
func WithIdleTimeout[In, Out any](d time.Duration) Option[In, Out] {
	return func(h *Handler[In, Out]) { h.idleTimeout = d }
}

// WithRole tags this handler's spans and metrics with role (e.g.
// "image_caption", "text_embedding"), matching the bundle's six handler
// roles (§4.3, §6). Unset, the role attribute is empty.
func WithRole[In, Out any](role string) Option[In, Out] {
	return func(h *Handler[In, Out]) { h.role = role }
}

// New builds a Handler around backend and starts its worker goroutine.
// defaultIdle is the idle-offload window used unless overridden by
// WithIdleTimeout (5s for small models, 10m for embedding models, per the
// two defaults the handler bundle configures).
func New[In, Out any](backend Backend[In, Out], defaultIdle time.Duration, opts ...Option[In, Out]) *Handler[In, Out] {
	h := &Handler[In, Out]{
		backend:      backend,
		idleTimeout:  defaultIdle,
		requests:     make(chan request[In, Out], requestQueueDepth),
		shutdown:     make(chan struct{}),
		shutdownDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.loop()
	return h
}

// Process accepts a slice of items, splits it into BatchSize()-sized
// batches, and returns per-item results in input order. A LoadFailed error
// is returned if the model could not be loaded for a batch; any later
// batches are not attempted in that case since the failure is almost
// certainly load-level rather than item-level. Individual item failures
// within a successfully loaded batch are reported as *ItemFailure by
// position, with outputs returned for the items that succeeded.
func (h *Handler[In, Out]) Process(ctx context.Context, items []In) ([]Out, []error) {
	outputs := make([]Out, len(items))
	errs := make([]error, len(items))

	limit := h.backend.BatchSize()
	if limit <= 0 {
		limit = len(items)
	}
	for start := 0; start < len(items); start += limit {
		end := start + limit
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		replyCh := make(chan batchResult[Out], 1)
		select {
		case h.requests <- request[In, Out]{ctx: ctx, items: batch, results: replyCh}:
		case <-ctx.Done():
			for i := start; i < end; i++ {
				errs[i] = ctx.Err()
			}
			return outputs, errs
		}

		select {
		case res := <-replyCh:
			if res.err != nil {
				for i := start; i < end; i++ {
					errs[i] = res.err
				}
				return outputs, errs
			}
			for i, out := range res.outputs {
				outputs[start+i] = out
			}
			for i, e := range res.errs {
				if e != nil {
					errs[start+i] = &ItemFailure{Index: start + i, Kind: "infer", Err: e}
				}
			}
		case <-ctx.Done():
			for i := start; i < end; i++ {
				errs[i] = ctx.Err()
			}
			return outputs, errs
		}
	}
	return outputs, errs
}

// Shutdown releases the model immediately and stops the worker goroutine.
func (h *Handler[In, Out]) Shutdown(ctx context.Context) {
	close(h.shutdown)
	<-h.shutdownDone
}

// traceInfer wraps one Infer call with a span and the batch/item/failure
// counters, tagged by h.role, so model-handler batch calls are visible the
// way the teacher's internal/llm wraps LLM calls with token counters.
func (h *Handler[In, Out]) traceInfer(ctx context.Context, items []In) ([]Out, []error) {
	ensureHandlerInstruments()
	roleAttr := attribute.String("modelhandler.role", h.role)

	spanCtx, span := handlerTracer.Start(ctx, "modelhandler.infer",
		trace.WithAttributes(roleAttr, attribute.Int("modelhandler.batch_size", len(items))))
	defer span.End()

	outputs, errs := h.backend.Infer(spanCtx, items)

	failed := 0
	for _, e := range errs {
		if e != nil {
			failed++
		}
	}

	batchCounter.Add(ctx, 1, otelmetric.WithAttributes(roleAttr))
	itemCounter.Add(ctx, int64(len(items)), otelmetric.WithAttributes(roleAttr))
	if failed > 0 {
		failureCounter.Add(ctx, int64(failed), otelmetric.WithAttributes(roleAttr))
		span.SetAttributes(attribute.Int("modelhandler.item_failures", failed))
	}
	return outputs, errs
}

// loop is the handler's single dedicated worker. It owns all calls into
// backend, so Load/Unload/Infer never race with each other.
func (h *Handler[In, Out]) loop() {
	defer close(h.shutdownDone)

	loaded := false
	idle := time.NewTimer(h.idleTimeout)
	if !idle.Stop() {
		<-idle.C
	}

	unload := func() {
		if loaded {
			h.backend.Unload(context.Background())
			loaded = false
		}
	}

	for {
		select {
		case req := <-h.requests:
			idle.Stop()
			select {
			case <-idle.C:
			default:
			}

			if !loaded {
				if err := h.backend.Load(req.ctx); err != nil {
					req.results <- batchResult[Out]{err: fmt.Errorf("%w: %v", ErrLoadFailed, err)}
					idle.Reset(h.idleTimeout)
					continue
				}
				loaded = true
			}

			outputs, errs := h.traceInfer(req.ctx, req.items)
			req.results <- batchResult[Out]{outputs: outputs, errs: errs}
			idle.Reset(h.idleTimeout)

		case <-idle.C:
			unload()

		case <-h.shutdown:
			unload()
			return
		}
	}
}
