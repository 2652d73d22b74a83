package searchstore

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
)

// memState is the shared state behind the in-memory vector store and
// full-text store pair returned by NewMemory. It exists as one struct so
// tests can construct a single in-process search backend and get both
// halves of the VectorStore/FullTextStore split without synchronising two
// independent maps by hand.
type memState struct {
	mu sync.Mutex

	collections map[string]int // name -> dimension
	points      map[string][]VectorPoint

	rows map[string]memRow
}

type memRow struct {
	text    string
	payload Payload
}

// MemoryVectorStore is an in-process VectorStore with exact cosine
// similarity, used by tests and single-process deployments that don't want
// a Qdrant dependency.
type MemoryVectorStore struct{ state *memState }

// MemoryFullTextStore is an in-process FullTextStore with substring term
// scoring, used alongside MemoryVectorStore for the same reasons.
type MemoryFullTextStore struct{ state *memState }

// NewMemory returns a paired in-memory VectorStore and FullTextStore
// sharing nothing externally observable but backed by the same guard, so a
// test can wire one engine to both without worrying about two independent
// backends drifting.
func NewMemory() (*MemoryVectorStore, *MemoryFullTextStore) {
	s := &memState{
		collections: map[string]int{},
		points:      map[string][]VectorPoint{},
		rows:        map[string]memRow{},
	}
	return &MemoryVectorStore{state: s}, &MemoryFullTextStore{state: s}
}

func (m *MemoryVectorStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	if _, ok := m.state.collections[name]; !ok {
		m.state.collections[name] = dimension
	}
	return nil
}

func (m *MemoryVectorStore) Upsert(ctx context.Context, collection string, point VectorPoint) error {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	pts := m.state.points[collection]
	for i, p := range pts {
		if p.ID == point.ID {
			pts[i] = point
			return nil
		}
	}
	m.state.points[collection] = append(pts, point)
	return nil
}

func (m *MemoryVectorStore) Search(ctx context.Context, collection string, vector []float32, k int) ([]VectorHit, error) {
	m.state.mu.Lock()
	pts := append([]VectorPoint(nil), m.state.points[collection]...)
	m.state.mu.Unlock()

	hits := make([]VectorHit, 0, len(pts))
	for _, p := range pts {
		d := 1 - cosine(vector, p.Vector)
		if d < 0 {
			d = 0
		}
		hits = append(hits, VectorHit{ID: p.ID, Distance: d, Payload: p.Payload})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryVectorStore) DeleteByFileIdentifier(ctx context.Context, fid string) error {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	for collection, pts := range m.state.points {
		kept := pts[:0:0]
		for _, p := range pts {
			if p.Payload.FileIdentifier != fid {
				kept = append(kept, p)
			}
		}
		m.state.points[collection] = kept
	}
	return nil
}

func (m *MemoryFullTextStore) Index(ctx context.Context, id, text string, payload Payload) error {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	m.state.rows[id] = memRow{text: text, payload: payload}
	return nil
}

// Search scores a token against a row by substring occurrence count,
// matching the "tf-ish" scoring §4.8 describes for its seed scenario.
func (m *MemoryFullTextStore) Search(ctx context.Context, tokens []string, aggregateMax bool, limit int) ([]FullTextHit, error) {
	m.state.mu.Lock()
	rows := make(map[string]memRow, len(m.state.rows))
	for id, r := range m.state.rows {
		rows[id] = r
	}
	m.state.mu.Unlock()

	var hits []FullTextHit
	for id, row := range rows {
		lower := strings.ToLower(row.text)
		var scores []TermScore
		var highlights []Highlight
		for _, term := range tokens {
			lowerTerm := strings.ToLower(term)
			count := strings.Count(lower, lowerTerm)
			if count == 0 {
				continue
			}
			scores = append(scores, TermScore{Term: term, Score: float64(count)})
			highlights = append(highlights, highlightSpans(row.text, term)...)
		}
		if len(scores) == 0 {
			continue
		}
		hits = append(hits, FullTextHit{ID: id, Text: row.text, Scores: scores, Highlights: highlights, Payload: row.payload})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return aggregateScore(hits[i].Scores, aggregateMax) > aggregateScore(hits[j].Scores, aggregateMax)
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *MemoryFullTextStore) DeleteByFileIdentifier(ctx context.Context, fid string) error {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	for id, row := range m.state.rows {
		if row.payload.FileIdentifier == fid {
			delete(m.state.rows, id)
		}
	}
	return nil
}

func aggregateScore(scores []TermScore, max bool) float64 {
	if len(scores) == 0 {
		return 0
	}
	if max {
		best := scores[0].Score
		for _, s := range scores[1:] {
			if s.Score > best {
				best = s.Score
			}
		}
		return best
	}
	var sum float64
	for _, s := range scores {
		sum += s.Score
	}
	return sum / float64(len(scores))
}

var (
	_ VectorStore   = (*MemoryVectorStore)(nil)
	_ FullTextStore = (*MemoryFullTextStore)(nil)
)

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
