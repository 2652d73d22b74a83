package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/tasks"
	"lumenarchive/internal/telemetry"
)

var poolTracer = telemetry.Tracer("lumenarchive/scheduler")

// Task-lifecycle instruments, lazily initialized once per process the
// first time a task completes, mirroring modelhandler's
// ensureHandlerInstruments pattern.
var (
	taskMetricsOnce sync.Once
	taskCounter     otelmetric.Int64Counter
	taskErrorCount  otelmetric.Int64Counter
)

func ensureTaskInstruments() {
	taskMetricsOnce.Do(func() {
		m := telemetry.Meter("lumenarchive/scheduler")
		taskCounter, _ = m.Int64Counter("scheduler.tasks", otelmetric.WithDescription("Task executions by task_type and status"))
		taskErrorCount, _ = m.Int64Counter("scheduler.task_errors", otelmetric.WithDescription("Task executions ending in error, by task_type"))
	})
}

// Pool is the task pool (spec component C5): one priority queue, one
// inflight cancellation-token table, and a single worker goroutine that
// runs at most one task at a time and may preempt it for a higher-priority
// arrival.
type Pool struct {
	catalogue tasks.Catalogue
	ctx       *tasks.Context
	log       zerolog.Logger

	mu              sync.Mutex
	queue           taskHeap
	inflight        map[string]map[asset.TaskType]*CancelToken
	currentPriority *Priority
	insertionSeq    int64

	taskSignal    chan struct{}
	preemptSignal chan struct{}
	cancelAll     *CancelToken

	notifications chan Notification
	done          chan struct{}
}

// New builds a Pool that dispatches through cat using engine capabilities
// in ctx. notifyBuffer sizes the notification channel; 0 is a sane default
// for tests, production callers should size it to the expected burst.
func New(cat tasks.Catalogue, ctx *tasks.Context, log zerolog.Logger, notifyBuffer int) *Pool {
	return &Pool{
		catalogue:     cat,
		ctx:           ctx,
		log:           log.With().Str("component", "scheduler").Logger(),
		inflight:      map[string]map[asset.TaskType]*CancelToken{},
		taskSignal:    make(chan struct{}, 1),
		preemptSignal: make(chan struct{}, 1),
		cancelAll:     NewCancelToken(),
		notifications: make(chan Notification, notifyBuffer),
		done:          make(chan struct{}),
	}
}

// Notifications returns the stream of task status transitions. Callers
// should drain it continuously; when the buffer is full the worker drops
// the status update (logging a warning) instead of blocking.
func (p *Pool) Notifications() <-chan Notification {
	return p.notifications
}

// Wait blocks until Run's worker goroutine has exited.
func (p *Pool) Wait() {
	<-p.done
}

func (p *Pool) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// AddTask enqueues (fileIdentifier, taskType) at priority with a fresh
// cancel token. A call for a pair that is already pending or running is
// ignored (the scheduler admits at most one concurrent/queued run per pair).
func (p *Pool) AddTask(fid, filePath string, taskType asset.TaskType, priority Priority) {
	p.mu.Lock()

	if _, ok := p.inflight[fid]; !ok {
		p.inflight[fid] = map[asset.TaskType]*CancelToken{}
	}
	if _, exists := p.inflight[fid][taskType]; exists {
		p.mu.Unlock()
		return
	}
	p.inflight[fid][taskType] = NewCancelToken()

	p.insertionSeq++
	t := &pendingTask{
		fileIdentifier: fid,
		filePath:       filePath,
		taskType:       taskType,
		order: orderedPriority{
			priority:  priority,
			insertion: p.insertionSeq,
		},
	}
	heap.Push(&p.queue, t)

	preempt := p.currentPriority != nil && priority > *p.currentPriority
	p.mu.Unlock()

	p.signal(p.taskSignal)
	if preempt {
		p.signal(p.preemptSignal)
	}
}

// Cancel fires the token for (fid, taskType), if one is inflight.
func (p *Pool) Cancel(fid string, taskType asset.TaskType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if byType, ok := p.inflight[fid]; ok {
		if tok, ok := byType[taskType]; ok {
			tok.Fire()
		}
	}
}

// CancelByFile fires every inflight token for fid.
func (p *Pool) CancelByFile(fid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tok := range p.inflight[fid] {
		tok.Fire()
	}
}

// CancelAll fires the global token; every currently running or queued task
// observes it.
func (p *Pool) CancelAll() {
	p.cancelAll.Fire()
}

// Run drives the worker loop until goCtx is cancelled. It is meant to run
// in its own goroutine for the pool's lifetime.
func (p *Pool) Run(goCtx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-goCtx.Done():
			return
		case <-p.taskSignal:
		case <-p.preemptSignal:
		}

		for p.drainOne(goCtx) {
		}

		if goCtx.Err() != nil {
			return
		}
	}
}

// drainOne pops and runs a single task if the queue is non-empty, returning
// true if it should be called again immediately (more work queued).
func (p *Pool) drainOne(goCtx context.Context) bool {
	p.mu.Lock()
	if p.queue.Len() == 0 {
		p.mu.Unlock()
		return false
	}
	t := heap.Pop(&p.queue).(*pendingTask)
	priority := t.order.priority
	p.currentPriority = &priority

	byType, ok := p.inflight[t.fileIdentifier]
	var tok *CancelToken
	if ok {
		tok = byType[t.taskType]
	}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.currentPriority = nil
		p.mu.Unlock()
	}()

	if tok == nil {
		p.log.Error().Str("file_identifier", t.fileIdentifier).Str("task_type", string(t.taskType)).
			Msg("missing cancel token for popped task, discarding")
		return p.queue.Len() > 0
	}

	requeue := p.runTask(goCtx, t, tok)
	if requeue {
		p.mu.Lock()
		heap.Push(&p.queue, t)
		p.mu.Unlock()
		return true
	}

	p.mu.Lock()
	if byType, ok := p.inflight[t.fileIdentifier]; ok {
		delete(byType, t.taskType)
		if len(byType) == 0 {
			delete(p.inflight, t.fileIdentifier)
		}
	}
	more := p.queue.Len() > 0
	p.mu.Unlock()
	return more
}

// runTask runs one task to completion, cancellation, or preemption. It
// returns true if the task was preempted and must be requeued at its
// original ordered priority.
func (p *Pool) runTask(goCtx context.Context, t *pendingTask, tok *CancelToken) bool {
	p.notify(t, Started, "")

	taskCtx, cancel := context.WithCancel(goCtx)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- p.tracedExecute(taskCtx, t)
	}()

	select {
	case err := <-result:
		if err != nil {
			p.notify(t, Error, err.Error())
		} else {
			p.notify(t, Finished, "")
		}
		return false

	case <-tok.Done():
		cancel()
		<-result
		p.notify(t, Cancelled, "")
		return false

	case <-p.cancelAll.Done():
		cancel()
		<-result
		p.notify(t, Cancelled, "")
		return false

	case <-p.preemptSignal:
		cancel()
		<-result
		return true
	}
}

// tracedExecute wraps execute with a span carrying the asset/task_type
// identity, the way internal/modelhandler wraps each Infer batch: one span
// per popped task, covering the whole dependency-resolve-then-run body.
func (p *Pool) tracedExecute(goCtx context.Context, t *pendingTask) error {
	ctx, span := poolTracer.Start(goCtx, "scheduler.execute", trace.WithAttributes(
		attribute.String("scheduler.file_identifier", t.fileIdentifier),
		attribute.String("scheduler.task_type", string(t.taskType)),
	))
	defer span.End()

	err := p.execute(ctx, t)
	if err != nil {
		span.SetAttributes(attribute.String("scheduler.error", err.Error()))
	}
	return err
}

// execute resolves the task's ledger run and invokes its body. Declared
// dependencies that have no completed run yet are materialised first, by
// recursively executing them in topological order: a single AddTask call
// for a pipeline's terminal task is enough to drive the whole chain, since
// the orchestrator (§4.6) dispatches only terminal task types and relies on
// complete-before-start ordering, not an explicit upstream enqueue.
// Already-completed dependencies are left untouched (memoisation, §3
// invariant 2), so concurrent pipelines sharing a prefix never redo work.
func (p *Pool) execute(goCtx context.Context, t *pendingTask) error {
	task := p.catalogue.Get(t.taskType)
	if task == nil {
		return fmt.Errorf("scheduler: no task registered for %s", t.taskType)
	}

	fi := tasks.FileInfo{FileIdentifier: t.fileIdentifier, FilePath: t.filePath}
	rec, err := p.ctx.Ledger.Load(goCtx, t.fileIdentifier)
	if err != nil {
		return fmt.Errorf("scheduler: load record for %s: %w", t.fileIdentifier, err)
	}

	depTypes := task.Dependencies()
	for _, dt := range depTypes {
		if rec.LatestCompleted(dt) != nil {
			continue
		}
		if goCtx.Err() != nil {
			return goCtx.Err()
		}
		depTask := &pendingTask{fileIdentifier: t.fileIdentifier, filePath: t.filePath, taskType: dt}
		p.notify(depTask, Started, "")
		if err := p.execute(goCtx, depTask); err != nil {
			p.notify(depTask, Error, err.Error())
			return fmt.Errorf("scheduler: dependency %s for %s: %w", dt, t.taskType, err)
		}
		p.notify(depTask, Finished, "")
		rec, err = p.ctx.Ledger.Load(goCtx, t.fileIdentifier)
		if err != nil {
			return fmt.Errorf("scheduler: reload record for %s: %w", t.fileIdentifier, err)
		}
	}

	params, err := task.Parameters(p.ctx, fi, rec)
	if err != nil {
		return fmt.Errorf("scheduler: parameters for %s/%s: %w", t.fileIdentifier, t.taskType, err)
	}

	resolve := func(depType asset.TaskType) (string, bool) {
		run := rec.LatestCompleted(depType)
		if run == nil {
			return "", false
		}
		return run.ID, true
	}

	if target := rec.TargetRun(t.taskType, params, dependencySnapshot(rec, depTypes)); target != nil {
		return nil
	}

	run, err := p.ctx.Ledger.CreateRun(goCtx, rec, t.taskType, params, depTypes, resolve, task.OutputTemplate)
	if err != nil {
		return fmt.Errorf("scheduler: create_run %s/%s: %w", t.fileIdentifier, t.taskType, err)
	}

	if err := task.Run(goCtx, p.ctx, fi, rec, run); err != nil {
		return err
	}

	return p.ctx.Ledger.CompleteRun(goCtx, rec, run)
}

// dependencySnapshot builds the {task_type, run_id} list TargetRun compares
// against, from the record's currently memoised dependency runs.
func dependencySnapshot(rec *asset.TaskRecord, depTypes []asset.TaskType) []asset.Dependency {
	deps := make([]asset.Dependency, 0, len(depTypes))
	for _, dt := range depTypes {
		if run := rec.LatestCompleted(dt); run != nil {
			deps = append(deps, asset.Dependency{TaskType: dt, RunID: run.ID})
		}
	}
	return deps
}

func (p *Pool) notify(t *pendingTask, status Status, message string) {
	if isTerminal(status) {
		ensureTaskInstruments()
		taskTypeAttr := attribute.String("scheduler.task_type", string(t.taskType))
		taskCounter.Add(context.Background(), 1, otelmetric.WithAttributes(
			taskTypeAttr, attribute.String("scheduler.status", string(status))))
		if status == Error {
			taskErrorCount.Add(context.Background(), 1, otelmetric.WithAttributes(taskTypeAttr))
		}
	}

	n := Notification{FileIdentifier: t.fileIdentifier, TaskType: t.taskType, Status: status, Message: message}
	select {
	case p.notifications <- n:
	default:
		p.log.Warn().Str("file_identifier", t.fileIdentifier).Str("task_type", string(t.taskType)).
			Msg("notification stream full, dropping status update")
	}
}
