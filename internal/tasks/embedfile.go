package tasks

import (
	"encoding/json"
	"fmt"
)

// EncodeEmbedding serialises an embedding vector to the ".embedding" file
// format every *Embed task writes: a flat JSON float32 array. JSON keeps
// the artifact debuggable (diffable, greppable) at the cost of a little
// size, matching the style of every other JSON artifact in the ledger.
func EncodeEmbedding(v []float32) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("tasks: encode embedding: %w", err)
	}
	return data, nil
}

// DecodeEmbedding parses a ".embedding" file back into a vector.
func DecodeEmbedding(data []byte) ([]float32, error) {
	var v []float32
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("tasks: decode embedding: %w", err)
	}
	return v, nil
}
