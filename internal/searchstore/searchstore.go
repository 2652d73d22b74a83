// Package searchstore defines the two search-store capabilities the index
// writer (C7) and query engine (C8) depend on: a cosine-similarity vector
// collection and a full-text row store, plus the shared Payload schema
// carried on every point/row so a hit can be traced back to its asset.
package searchstore

import (
	"context"
	"encoding/json"
)

// Collection names the two vector spaces described in §3/§6. Every engine
// is constructed with exactly these two.
const (
	CollectionLanguage = "language"
	CollectionVision   = "vision"
)

// PayloadMetadata is the union carried in Payload.Metadata: either a
// millisecond time range (audio/video chunks) or an index range
// (document/web-page chunks), or neither (whole-asset/loose entities).
type PayloadMetadata struct {
	StartTimestamp *int64 `json:"start_timestamp,omitempty"`
	EndTimestamp   *int64 `json:"end_timestamp,omitempty"`
	StartIndex     *int64 `json:"start_index,omitempty"`
	EndIndex       *int64 `json:"end_index,omitempty"`
}

// Payload is the reverse edge from any Text/Image point back to its asset,
// carried on both the vector point and the full-text row (§6's "Vector
// payload schema").
type Payload struct {
	FileIdentifier string          `json:"file_identifier"`
	TaskType       string          `json:"task_type"`
	Metadata       PayloadMetadata `json:"metadata"`
}

// CanonicalJSON returns the canonical serialisation of p used as the input
// to UUIDv5 point-id generation: stable key order via a struct (encoding/
// json already sorts nothing, but the struct's field order is fixed), so
// identical payloads always serialise identically.
func (p Payload) CanonicalJSON() ([]byte, error) {
	return json.Marshal(p)
}

// VectorPoint is one row upserted into a vector collection.
type VectorPoint struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// VectorHit is one ranked result from a vector similarity search.
type VectorHit struct {
	ID       string
	Distance float64
	Payload  Payload
}

// VectorStore is a cosine-similarity vector collection: upsert and nearest-
// neighbour search, cluster-agnostic per §1 ("the core only requires a
// 'collection' with upsert and cosine search").
type VectorStore interface {
	// EnsureCollection creates the named collection with the given
	// dimension if it does not already exist.
	EnsureCollection(ctx context.Context, name string, dimension int) error

	// Upsert writes point into collection with wait=true semantics (the
	// write is visible to the next search before Upsert returns).
	Upsert(ctx context.Context, collection string, point VectorPoint) error

	// Search returns the k nearest points to vector in collection, sorted
	// ascending by distance.
	Search(ctx context.Context, collection string, vector []float32, k int) ([]VectorHit, error)

	// DeleteByFileIdentifier removes every point in every collection whose
	// payload names fid. Idempotent.
	DeleteByFileIdentifier(ctx context.Context, fid string) error
}

// TermScore is one term's contribution to a full-text row's score.
type TermScore struct {
	Term  string
	Score float64
}

// Highlight is one matched span within a full-text row's text.
type Highlight struct {
	Start int
	End   int
	Term  string
}

// FullTextHit is one ranked result from a full-text search.
type FullTextHit struct {
	ID         string
	Text       string
	Scores     []TermScore
	Highlights []Highlight
	Payload    Payload
}

// FullTextStore indexes atomic Text chunks for token-list search (§4.2,
// C7 step 4) and relates each row back to its Payload.
type FullTextStore interface {
	// Index upserts one Text row keyed by id, with its text as given and
	// the payload relation edge back to its asset.
	Index(ctx context.Context, id, text string, payload Payload) error

	// Search returns rows matching any of tokens, scored per §4.8 step 3
	// (average or max of per-term scores — AggregateMax selects which).
	Search(ctx context.Context, tokens []string, aggregateMax bool, limit int) ([]FullTextHit, error)

	// DeleteByFileIdentifier removes every row whose payload names fid.
	// Idempotent.
	DeleteByFileIdentifier(ctx context.Context, fid string) error
}
