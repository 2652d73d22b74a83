package tasks

import (
	"encoding/json"
	"fmt"

	"lumenarchive/internal/asset"
)

// AssetDir returns the artifact directory for fid, "artifacts/<shard>/<fid>"
// (§6's on-disk layout), the root every task's File/Folder output is
// relative to.
func AssetDir(fid string) string {
	return fmt.Sprintf("artifacts/%s/%s", asset.Shard(fid), fid)
}

// AssetPath joins a relative artifact name onto fid's asset directory.
func AssetPath(fid, name string) string {
	return AssetDir(fid) + "/" + name
}

// MarshalParameters is the shared json.Marshal-then-RawMessage helper every
// task's Parameters implementation uses, so parameter JSON is always
// produced by json.Marshal of a struct (never hand-authored), which is
// what makes the ledger's byte-equality memoisation check valid.
func MarshalParameters(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("tasks: marshal parameters: %w", err)
	}
	return data, nil
}
