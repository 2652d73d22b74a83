package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackChunksEmpty(t *testing.T) {
	assert.Nil(t, PackChunks(nil, 10))
}

func TestPackChunksSeedScenario(t *testing.T) {
	// §8 end-to-end scenario 1: two transcript entries, chunk_size=10
	// tokens, two chunks expected (one entry per chunk since each entry
	// alone already uses most of the budget in this seed).
	items := []ChunkItem{
		{Start: 0, End: 2000, Text: "Hello world", Tokens: 6},
		{Start: 2000, End: 4000, Text: "Goodbye", Tokens: 6},
	}
	chunks := PackChunks(items, 10)
	require.Len(t, chunks, 2)
	assert.Equal(t, int64(0), chunks[0].Start)
	assert.Equal(t, int64(2000), chunks[0].End)
	assert.Equal(t, "Hello world", chunks[0].Text)
	assert.Equal(t, int64(2000), chunks[1].Start)
	assert.Equal(t, int64(4000), chunks[1].End)
}

func TestPackChunksSingleItemLargerThanChunkSize(t *testing.T) {
	// §8 boundary: a single item larger than chunk_size still gets one
	// chunk (degenerate admission — the strict '>' check only fires once
	// the buffer is already non-empty).
	items := []ChunkItem{{Start: 0, End: 100, Text: "huge", Tokens: 50}}
	chunks := PackChunks(items, 10)
	require.Len(t, chunks, 1)
	assert.Equal(t, "huge", chunks[0].Text)
}

func TestPackChunksExactFitAdmittedFirst(t *testing.T) {
	items := []ChunkItem{
		{Start: 0, End: 1, Text: "a", Tokens: 5},
		{Start: 1, End: 2, Text: "b", Tokens: 5}, // exactly fills to 10
		{Start: 2, End: 3, Text: "c", Tokens: 1}, // triggers emission
	}
	chunks := PackChunks(items, 10)
	require.GreaterOrEqual(t, len(chunks), 1)
	assert.Equal(t, "a\nb", chunks[0].Text)
}

func TestPackChunksOrderedAndCoverTimeline(t *testing.T) {
	items := make([]ChunkItem, 0, 20)
	for i := 0; i < 20; i++ {
		items = append(items, ChunkItem{Start: int64(i), End: int64(i + 1), Text: "x", Tokens: 3})
	}
	chunkSize := 10
	chunks := PackChunks(items, chunkSize)
	require.NotEmpty(t, chunks)
	// Every chunk except possibly the last packs within budget when
	// measured by re-deriving token counts from its constituent items is
	// out of scope here (Chunk only carries joined text); instead verify
	// the weaker, directly checkable property: chunks are produced in
	// non-decreasing start order and cover the whole timeline.
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i-1].Start, chunks[i].Start)
	}
	assert.Equal(t, items[0].Start, chunks[0].Start)
	assert.Equal(t, items[len(items)-1].End, chunks[len(chunks)-1].End)
}
