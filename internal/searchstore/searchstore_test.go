package searchstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadPointIDIdempotent(t *testing.T) {
	start := int64(0)
	end := int64(2000)
	p1 := Payload{FileIdentifier: "V1", TaskType: "video.trans_chunk_sum_embed", Metadata: PayloadMetadata{StartTimestamp: &start, EndTimestamp: &end}}
	p2 := Payload{FileIdentifier: "V1", TaskType: "video.trans_chunk_sum_embed", Metadata: PayloadMetadata{StartTimestamp: &start, EndTimestamp: &end}}

	id1, err := PayloadPointID(p1)
	require.NoError(t, err)
	id2, err := PayloadPointID(p2)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	other := p1
	otherEnd := int64(4000)
	other.Metadata.EndTimestamp = &otherEnd
	id3, err := PayloadPointID(other)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
}

func TestMemoryVectorStoreSearchAscendingByDistance(t *testing.T) {
	ctx := context.Background()
	vec, _ := NewMemory()
	require.NoError(t, vec.EnsureCollection(ctx, CollectionLanguage, 3))

	require.NoError(t, vec.Upsert(ctx, CollectionLanguage, VectorPoint{ID: "a", Vector: []float32{1, 0, 0}, Payload: Payload{FileIdentifier: "A"}}))
	require.NoError(t, vec.Upsert(ctx, CollectionLanguage, VectorPoint{ID: "b", Vector: []float32{0, 1, 0}, Payload: Payload{FileIdentifier: "B"}}))

	hits, err := vec.Search(ctx, CollectionLanguage, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Less(t, hits[0].Distance, hits[1].Distance)
}

func TestMemoryFullTextStoreSearchAndHighlight(t *testing.T) {
	ctx := context.Background()
	_, fts := NewMemory()

	require.NoError(t, fts.Index(ctx, "t1", "Hello world", Payload{FileIdentifier: "V1", TaskType: "video.trans_chunk_sum"}))
	require.NoError(t, fts.Index(ctx, "t2", "Goodbye", Payload{FileIdentifier: "V1", TaskType: "video.trans_chunk_sum"}))

	hits, err := fts.Search(ctx, []string{"hello"}, false, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "t1", hits[0].ID)
	require.Len(t, hits[0].Highlights, 1)
	assert.Equal(t, 0, hits[0].Highlights[0].Start)
	assert.Equal(t, 5, hits[0].Highlights[0].End)
}

func TestDeleteByFileIdentifierIdempotent(t *testing.T) {
	ctx := context.Background()
	vec, fts := NewMemory()
	require.NoError(t, vec.Upsert(ctx, CollectionLanguage, VectorPoint{ID: "a", Vector: []float32{1}, Payload: Payload{FileIdentifier: "V1"}}))
	require.NoError(t, fts.Index(ctx, "t1", "hi", Payload{FileIdentifier: "V1"}))

	require.NoError(t, vec.DeleteByFileIdentifier(ctx, "V1"))
	require.NoError(t, fts.DeleteByFileIdentifier(ctx, "V1"))
	// idempotent: deleting again is not an error
	require.NoError(t, vec.DeleteByFileIdentifier(ctx, "V1"))
	require.NoError(t, fts.DeleteByFileIdentifier(ctx, "V1"))

	hits, err := vec.Search(ctx, CollectionLanguage, []float32{1}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
