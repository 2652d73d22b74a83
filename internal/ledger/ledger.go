// Package ledger implements the per-asset artifact ledger: durable
// TaskRecord persistence with memoisation support. Every public operation is
// atomic with respect to the asset's JSON file and serialised by a per-asset
// lock so concurrent readers see a consistent record while a single
// mutator at a time appends to it.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/storage"
)

const recordFileName = "artifacts.json"

// ErrStorageIO is returned when loading a record fails for a reason other
// than the record being absent — a transient backend failure (network,
// permissions, a degraded S3 endpoint) rather than "no record yet". Checked
// with errors.Is, matching internal/tasks/errors.go's sentinel style.
var ErrStorageIO = errors.New("ledger: storage read failed")

// Ledger is the artifact ledger capability (spec component C2).
type Ledger struct {
	store storage.Storage
	log   zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds a Ledger backed by store. Paths it reads/writes are relative
// to the storage root, e.g. "artifacts/<shard>/<fid>/artifacts.json".
func New(store storage.Storage, log zerolog.Logger) *Ledger {
	return &Ledger{store: store, log: log.With().Str("component", "ledger").Logger(), locks: map[string]*sync.Mutex{}}
}

func recordPath(fid string) string {
	return fmt.Sprintf("artifacts/%s/%s/%s", asset.Shard(fid), fid, recordFileName)
}

// assetLock returns the per-asset mutex, creating it on first use.
func (l *Ledger) assetLock(fid string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[fid]
	if !ok {
		m = &sync.Mutex{}
		l.locks[fid] = m
	}
	return m
}

// Load returns the record for fid. A missing or corrupt file yields a fresh
// record with metadata=Unknown and no tasks; parse errors are never
// propagated upward. Any other storage read failure (a transient backend
// error, not "no record yet") is propagated as ErrStorageIO rather than
// silently discarding the asset's real task history.
func (l *Ledger) Load(ctx context.Context, fid string) (*asset.TaskRecord, error) {
	lock := l.assetLock(fid)
	lock.Lock()
	defer lock.Unlock()
	return l.loadLocked(ctx, fid)
}

func (l *Ledger) loadLocked(ctx context.Context, fid string) (*asset.TaskRecord, error) {
	data, err := l.store.Read(ctx, recordPath(fid))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return asset.NewRecord(fid), nil
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrStorageIO, fid, err)
	}
	var rec asset.TaskRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		l.log.Warn().Str("file_identifier", fid).Err(err).Msg("corrupt artifact record, starting fresh")
		return asset.NewRecord(fid), nil
	}
	if rec.Tasks == nil {
		rec.Tasks = map[asset.TaskType][]*asset.TaskRunRecord{}
	}
	return &rec, nil
}

func (l *Ledger) persistLocked(ctx context.Context, rec *asset.TaskRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ledger: marshal record for %s: %w", rec.FileIdentifier, err)
	}
	if err := l.store.Write(ctx, recordPath(rec.FileIdentifier), data); err != nil {
		return fmt.Errorf("ledger: persist record for %s: %w", rec.FileIdentifier, err)
	}
	return nil
}

// SetMetadata overwrites rec's metadata and persists it.
func (l *Ledger) SetMetadata(ctx context.Context, rec *asset.TaskRecord, meta asset.ContentMetadata) error {
	lock := l.assetLock(rec.FileIdentifier)
	lock.Lock()
	defer lock.Unlock()
	rec.Metadata = meta
	return l.persistLocked(ctx, rec)
}

// DependencyResolver looks up the currently-memoised run for a declared
// dependency task type, used by CreateRun to snapshot dependency run-ids.
type DependencyResolver func(depType asset.TaskType) (runID string, ok bool)

// CreateRun allocates a new run, snapshots parameters and dependency
// run-ids, appends it to rec.Tasks[taskType], persists, and returns it.
// output is the pre-assigned descriptor from the task's output template
// (a File/Folder path derived from the new run's id, or an empty Data
// value); callers compute it after seeing the assigned run ID, so CreateRun
// takes a function to build it instead of a literal value.
func (l *Ledger) CreateRun(
	ctx context.Context,
	rec *asset.TaskRecord,
	taskType asset.TaskType,
	parameters json.RawMessage,
	depTypes []asset.TaskType,
	resolve DependencyResolver,
	outputForRun func(runID string) asset.Output,
) (*asset.TaskRunRecord, error) {
	lock := l.assetLock(rec.FileIdentifier)
	lock.Lock()
	defer lock.Unlock()

	deps := make([]asset.Dependency, 0, len(depTypes))
	for _, dt := range depTypes {
		runID, ok := resolve(dt)
		if !ok {
			return nil, fmt.Errorf("ledger: create_run %s/%s: no memoised run for dependency %s", rec.FileIdentifier, taskType, dt)
		}
		deps = append(deps, asset.Dependency{TaskType: dt, RunID: runID})
	}

	runID := uuid.NewString()
	run := &asset.TaskRunRecord{
		ID:           runID,
		TaskType:     taskType,
		Parameters:   parameters,
		Output:       outputForRun(runID),
		Dependencies: deps,
		Completed:    false,
	}
	rec.Append(taskType, run)
	if err := l.persistLocked(ctx, rec); err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteRun marks run completed and persists rec.
func (l *Ledger) CompleteRun(ctx context.Context, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	lock := l.assetLock(rec.FileIdentifier)
	lock.Lock()
	defer lock.Unlock()
	run.Completed = true
	return l.persistLocked(ctx, rec)
}

// TargetRun returns the most recent completed run of taskType if its
// parameters and dependency run-ids equal the current ones, or nil; older
// completed runs are not considered.
func (l *Ledger) TargetRun(rec *asset.TaskRecord, taskType asset.TaskType, parameters json.RawMessage, deps []asset.Dependency) *asset.TaskRunRecord {
	return rec.TargetRun(taskType, parameters, deps)
}

// Delete removes the whole artifact directory for fid. Idempotent.
func (l *Ledger) Delete(ctx context.Context, fid string) error {
	lock := l.assetLock(fid)
	lock.Lock()
	defer lock.Unlock()
	dir := fmt.Sprintf("artifacts/%s/%s", asset.Shard(fid), fid)
	if err := l.store.Remove(ctx, dir); err != nil {
		return fmt.Errorf("ledger: delete %s: %w", fid, err)
	}
	return nil
}
