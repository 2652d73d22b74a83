package tasks

import "errors"

// Sentinel errors matching §7's per-task failure taxonomy, checked with
// errors.Is the way the teacher's internal/rag/service/errors.go and
// internal/objectstore/store.go sentinels are.
var (
	// ErrMissingDependency is returned when a declared dependency has no
	// memoised output to read. Fatal for the run; the scheduler leaves it
	// completed=false and moves on.
	ErrMissingDependency = errors.New("tasks: missing dependency output")

	// ErrCodecUnavailable is returned when a task needs a codec façade
	// that Context.Codecs doesn't have configured.
	ErrCodecUnavailable = errors.New("tasks: codec unavailable")

	// ErrInvalidMetadata is returned when a codec probe disagrees with the
	// asset's declared content kind.
	ErrInvalidMetadata = errors.New("tasks: invalid metadata")
)
