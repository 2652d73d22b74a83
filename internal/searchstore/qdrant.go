package searchstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// assetNamespace is the UUIDv5 namespace every payload UUID is derived
// under, keyed by the owning asset so repeated writes for the same asset
// are idempotent regardless of write order (§4.7 step 2).
var assetNamespace = uuid.MustParse("6f6f9b0a-df2e-4f0d-9f3b-2a0b7f6d9b7a")

// PayloadPointID returns the UUIDv5 point id for payload: the namespace is
// derived from FileIdentifier and the name is the canonical payload JSON,
// so identical (fid, task_type, metadata) triples always yield the same id
// (§8 testable property 5).
func PayloadPointID(p Payload) (string, error) {
	canon, err := p.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("searchstore: canonicalize payload: %w", err)
	}
	ns := uuid.NewSHA1(assetNamespace, []byte(p.FileIdentifier))
	return uuid.NewSHA1(ns, canon).String(), nil
}

// qdrantStore is the VectorStore backing the language/vision collections
// over Qdrant's gRPC API, grounded on the teacher's
// internal/persistence/databases/qdrant_vector.go.
type qdrantStore struct {
	client *qdrant.Client
}

// NewQdrant builds a VectorStore around an already-configured Qdrant
// client.
func NewQdrant(client *qdrant.Client) VectorStore {
	return &qdrantStore{client: client}
}

var _ VectorStore = (*qdrantStore)(nil)

func (q *qdrantStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("searchstore: check collection %s: %w", name, err)
	}
	if exists {
		return nil
	}
	if dimension <= 0 {
		return fmt.Errorf("searchstore: collection %s requires dimension > 0", name)
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("searchstore: create collection %s: %w", name, err)
	}
	return nil
}

func (q *qdrantStore) Upsert(ctx context.Context, collection string, point VectorPoint) error {
	payloadJSON, err := point.Payload.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("searchstore: marshal payload: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(payloadJSON, &fields); err != nil {
		return fmt.Errorf("searchstore: payload to map: %w", err)
	}

	vec := make([]float32, len(point.Vector))
	copy(vec, point.Vector)

	wait := true
	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(point.ID),
				Vectors: qdrant.NewVectorsDense(vec),
				Payload: qdrant.NewValueMap(fields),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("searchstore: upsert into %s: %w", collection, err)
	}
	return nil
}

func (q *qdrantStore) Search(ctx context.Context, collection string, vector []float32, k int) ([]VectorHit, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	limit := uint64(k)
	result, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("searchstore: search %s: %w", collection, err)
	}

	hits := make([]VectorHit, 0, len(result))
	for _, scored := range result {
		payload := payloadFromQdrant(scored.Payload)
		id := scored.Id.GetUuid()
		if id == "" {
			id = scored.Id.String()
		}
		// Qdrant returns cosine similarity in [-1,1]; the query engine
		// wants ascending distance, so invert and floor negatives at 0 per
		// §4.8 step 4 ("treat negatives as 0").
		distance := 1 - float64(scored.Score)
		if distance < 0 {
			distance = 0
		}
		hits = append(hits, VectorHit{ID: id, Distance: distance, Payload: payload})
	}
	return hits, nil
}

func (q *qdrantStore) DeleteByFileIdentifier(ctx context.Context, fid string) error {
	for _, collection := range []string{CollectionLanguage, CollectionVision} {
		exists, err := q.client.CollectionExists(ctx, collection)
		if err != nil || !exists {
			continue
		}
		_, err = q.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collection,
			Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
				Must: []*qdrant.Condition{qdrant.NewMatch("file_identifier", fid)},
			}),
		})
		if err != nil {
			return fmt.Errorf("searchstore: delete %s from %s: %w", fid, collection, err)
		}
	}
	return nil
}

func payloadFromQdrant(fields map[string]*qdrant.Value) Payload {
	var p Payload
	if v, ok := fields["file_identifier"]; ok {
		p.FileIdentifier = v.GetStringValue()
	}
	if v, ok := fields["task_type"]; ok {
		p.TaskType = v.GetStringValue()
	}
	if v, ok := fields["metadata"]; ok {
		if s := v.GetStructValue(); s != nil {
			if f, ok := s.Fields["start_timestamp"]; ok {
				n := int64(f.GetIntegerValue())
				p.Metadata.StartTimestamp = &n
			}
			if f, ok := s.Fields["end_timestamp"]; ok {
				n := int64(f.GetIntegerValue())
				p.Metadata.EndTimestamp = &n
			}
			if f, ok := s.Fields["start_index"]; ok {
				n := int64(f.GetIntegerValue())
				p.Metadata.StartIndex = &n
			}
			if f, ok := s.Fields["end_index"]; ok {
				n := int64(f.GetIntegerValue())
				p.Metadata.EndIndex = &n
			}
		}
	}
	return p
}
