package asset

import (
	"bytes"
	"encoding/json"
)

// OutputKind discriminates TaskRunRecord.Output. The on-disk tag is
// kebab-case ("data" / "file" / "folder").
type OutputKind string

const (
	OutputData   OutputKind = "data"
	OutputFile   OutputKind = "file"
	OutputFolder OutputKind = "folder"
)

// Output is a discriminated {Data(JSON) | File(relative_path) |
// Folder(relative_path)} union.
type Output struct {
	Kind OutputKind      `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
	Path string          `json:"path,omitempty"`
}

func DataOutput(v json.RawMessage) Output { return Output{Kind: OutputData, Data: v} }
func FileOutput(path string) Output       { return Output{Kind: OutputFile, Path: path} }
func FolderOutput(path string) Output     { return Output{Kind: OutputFolder, Path: path} }

// Dependency names one run this execution consumed.
type Dependency struct {
	TaskType TaskType `json:"task_type"`
	RunID    string   `json:"run_id"`
}

// TaskRunRecord is one concrete execution of a task on an asset.
type TaskRunRecord struct {
	ID           string          `json:"id"`
	TaskType     TaskType        `json:"task_type"`
	Parameters   json.RawMessage `json:"parameters"`
	Output       Output          `json:"output"`
	Dependencies []Dependency    `json:"dependencies"`
	Completed    bool            `json:"completed"`
}

// sameParameters reports whether two canonical parameter JSON blobs are
// equal. Canonicalization happens upstream (parameters are always produced
// by json.Marshal of a value, not hand-authored), so byte equality suffices
// for equality against the parameters of a newly requested run.
func sameParameters(a, b json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b))
}

// sameDependencies reports whether two dependency lists name the same
// ordered set of {task_type, run_id} pairs.
func sameDependencies(a, b []Dependency) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Matches reports whether this run can be reused as the target run for a
// task invoked with the given parameters and dependency run-ids (the
// memoisation key a scheduler uses to decide whether a task can be skipped).
func (r *TaskRunRecord) Matches(parameters json.RawMessage, deps []Dependency) bool {
	return r.Completed && sameParameters(r.Parameters, parameters) && sameDependencies(r.Dependencies, deps)
}

// TaskRecord is the per-asset document persisted as artifacts.json.
type TaskRecord struct {
	FileIdentifier string                     `json:"file_identifier"`
	Metadata       ContentMetadata            `json:"metadata"`
	Tasks          map[TaskType][]*TaskRunRecord `json:"tasks"`
}

// NewRecord returns a fresh record for fid, the shape load() falls back to
// when no ledger file exists yet or it fails to parse.
func NewRecord(fid string) *TaskRecord {
	return &TaskRecord{
		FileIdentifier: fid,
		Metadata:       Unknown(),
		Tasks:          map[TaskType][]*TaskRunRecord{},
	}
}

// LatestRun returns the most recently appended run of t, or nil.
func (r *TaskRecord) LatestRun(t TaskType) *TaskRunRecord {
	runs := r.Tasks[t]
	if len(runs) == 0 {
		return nil
	}
	return runs[len(runs)-1]
}

// LatestCompleted returns the most recent completed run of t, or nil.
func (r *TaskRecord) LatestCompleted(t TaskType) *TaskRunRecord {
	runs := r.Tasks[t]
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].Completed {
			return runs[i]
		}
	}
	return nil
}

// TargetRun returns the most recent completed run of t if its parameters and
// dependencies match the current ones, or nil; older completed runs are not
// considered.
func (r *TaskRecord) TargetRun(t TaskType, parameters json.RawMessage, deps []Dependency) *TaskRunRecord {
	run := r.LatestCompleted(t)
	if run == nil || !run.Matches(parameters, deps) {
		return nil
	}
	return run
}

// Append adds run to the task's run list. Existing runs are never mutated
// or removed.
func (r *TaskRecord) Append(t TaskType, run *TaskRunRecord) {
	if r.Tasks == nil {
		r.Tasks = map[TaskType][]*TaskRunRecord{}
	}
	r.Tasks[t] = append(r.Tasks[t], run)
}

// Shard returns the artifact directory shard for fid: its first three
// characters.
func Shard(fid string) string {
	if len(fid) >= 3 {
		return fid[:3]
	}
	return fid
}
