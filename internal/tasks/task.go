// Package tasks is the task catalogue (spec component C4): the closed set
// of task kinds, each supplying a parameter snapshot, declared
// dependencies, a pre-assigned output descriptor, and a run body. Concrete
// task kinds live in the per-media-kind subpackages (video, audio, image,
// rawtext, webpage); this package defines the shared Task contract,
// engine-wide Context capabilities, and the registry the scheduler and
// orchestrator dispatch through.
package tasks

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/codec"
	"lumenarchive/internal/ledger"
	"lumenarchive/internal/modelhandler"
	"lumenarchive/internal/storage"
)

// FileInfo names the asset and its source file a task body reads, the
// minimal identity every Run call needs regardless of task kind.
type FileInfo struct {
	FileIdentifier string
	FilePath       string
}

// Codecs bundles the per-media-kind decode façades a task body may need.
// A nil field means that codec isn't configured; tasks requiring it fail
// with ErrCodecUnavailable.
type Codecs struct {
	Video    codec.VideoCodec
	Audio    codec.AudioCodec
	Image    codec.ImageCodec
	Document codec.DocumentCodec
	WebPage  codec.WebPageCodec
}

// Context is the explicit engine object passed to every task body (§9:
// "model this as an explicit engine object passed to every task body; no
// process-globals"). It bundles every capability a Task needs: storage,
// the artifact ledger (for dependency output lookups), model handlers, and
// codecs.
type Context struct {
	Storage storage.Storage
	Ledger  *ledger.Ledger
	Models  *modelhandler.Bundle
	Codecs  Codecs
	Log     zerolog.Logger

	// ChunkSize is the token budget the chunking algorithm packs each
	// chunk to (§4.4's "target ≤ N tokens").
	ChunkSize int

	// ModelIDs names the concrete model backing each handler role. These
	// strings are folded into every model-calling task's Parameters JSON
	// so a model swap is a parameter change the ledger detects (§8
	// scenario 2).
	ModelIDs ModelIDs

	// Language pins ASR/summarisation to a language; empty means
	// auto-detect (ASR) and English (summarisation prompt, §4.4). The
	// summariser does not read the transcript's language field.
	Language string
}

// ModelIDs names the concrete model identifier backing each handler role.
type ModelIDs struct {
	ImageCaption        string
	AudioTranscript     string
	TextEmbedding       string
	MultiModalEmbedding string
	LLM                 string
}

// DependencyOutputs resolves the artifact outputs of a run's recorded
// dependencies, looked up by re-scanning the record's run history (§4.4:
// "read dependency outputs via run_record.dependencies → look up the dep's
// run → read its output path").
func DependencyOutputs(rec *asset.TaskRecord, run *asset.TaskRunRecord) map[asset.TaskType]*asset.TaskRunRecord {
	out := make(map[asset.TaskType]*asset.TaskRunRecord, len(run.Dependencies))
	for _, dep := range run.Dependencies {
		for _, candidate := range rec.Tasks[dep.TaskType] {
			if candidate.ID == dep.RunID {
				out[dep.TaskType] = candidate
				break
			}
		}
	}
	return out
}

// Task is the four-function contract every task variant implements
// (§4.4, §9 "model as a closed sum type whose variants implement four
// functions").
type Task interface {
	// Type returns this task's identity in the closed TaskType enum.
	Type() asset.TaskType

	// Dependencies returns the task types whose outputs this task reads.
	Dependencies() []asset.TaskType

	// Parameters returns a canonical JSON value of everything that
	// affects this task's output for fi; equality of this JSON is the
	// memoisation signal (§3 invariant 1).
	Parameters(ctx *Context, fi FileInfo, rec *asset.TaskRecord) (json.RawMessage, error)

	// OutputTemplate returns the pre-assigned output descriptor for a
	// fresh run with the given id: a File/Folder path derived from runID,
	// or an empty Data value.
	OutputTemplate(runID string) asset.Output

	// Run performs the work, reading dependency outputs via rec/run and
	// writing its own artifact(s) under ctx.Storage. Run must observe
	// goCtx cancellation at I/O and model-call boundaries and must leave
	// no partial (non-tmp) artifact if cancelled.
	Run(goCtx context.Context, ctx *Context, fi FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error
}

// Catalogue maps every TaskType to its Task implementation. Subpackages
// register their tasks into a Catalogue via their Register functions
// rather than a package-level global, so a caller composes exactly the
// media kinds it needs (§9: "a derive-style helper to expand the match is
// fine but not required").
type Catalogue map[asset.TaskType]Task

// NewCatalogue returns an empty catalogue ready for Register calls.
func NewCatalogue() Catalogue { return Catalogue{} }

// Register adds t to the catalogue, keyed by its Type.
func (c Catalogue) Register(t Task) { c[t.Type()] = t }

// Get returns the task for tt, or nil if unregistered.
func (c Catalogue) Get(tt asset.TaskType) Task { return c[tt] }
