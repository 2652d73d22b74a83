package searchstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresStore is the FullTextStore backing the Text entity store over
// Postgres full-text search (tsvector/plainto_tsquery), grounded on the
// teacher's internal/persistence/databases/postgres_search.go.
type postgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres builds a FullTextStore around pool, creating the backing
// table and GIN index if absent.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (FullTextStore, error) {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS text_chunks (
  id TEXT PRIMARY KEY,
  text TEXT NOT NULL,
  file_identifier TEXT NOT NULL,
  task_type TEXT NOT NULL,
  payload JSONB NOT NULL DEFAULT '{}'::jsonb,
  ts tsvector GENERATED ALWAYS AS (to_tsvector('simple', coalesce(text,''))) STORED
);`)
	if err != nil {
		return nil, fmt.Errorf("searchstore: create text_chunks table: %w", err)
	}
	_, err = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS text_chunks_ts_idx ON text_chunks USING GIN (ts)`)
	if err != nil {
		return nil, fmt.Errorf("searchstore: create text_chunks index: %w", err)
	}
	_, err = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS text_chunks_fid_idx ON text_chunks (file_identifier)`)
	if err != nil {
		return nil, fmt.Errorf("searchstore: create file_identifier index: %w", err)
	}
	return &postgresStore{pool: pool}, nil
}

var _ FullTextStore = (*postgresStore)(nil)

func (p *postgresStore) Index(ctx context.Context, id, text string, payload Payload) error {
	payloadJSON, err := payload.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("searchstore: marshal payload: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO text_chunks(id, text, file_identifier, task_type, payload)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET text=EXCLUDED.text, payload=EXCLUDED.payload
`, id, text, payload.FileIdentifier, payload.TaskType, payloadJSON)
	if err != nil {
		return fmt.Errorf("searchstore: index text chunk %s: %w", id, err)
	}
	return nil
}

// Search runs one plainto_tsquery per token via ts_rank and fuses per-term
// scores into §4.8 step 3's per-row score list (average or max depending on
// aggregateMax), matching the rank-then-fuse shape the query engine expects
// before RRF.
func (p *postgresStore) Search(ctx context.Context, tokens []string, aggregateMax bool, limit int) ([]FullTextHit, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	byID := map[string]*FullTextHit{}
	order := []string{}
	for _, term := range tokens {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		rows, err := p.pool.Query(ctx, `
SELECT id, text, file_identifier, task_type, payload, ts_rank(ts, plainto_tsquery('simple',$1)) AS score
FROM text_chunks
WHERE ts @@ plainto_tsquery('simple',$1)
ORDER BY score DESC
LIMIT $2
`, term, limit)
		if err != nil {
			return nil, fmt.Errorf("searchstore: search term %q: %w", term, err)
		}
		for rows.Next() {
			var id, text, fid, taskType string
			var payloadJSON []byte
			var score float64
			if err := rows.Scan(&id, &text, &fid, &taskType, &payloadJSON, &score); err != nil {
				rows.Close()
				return nil, fmt.Errorf("searchstore: scan row: %w", err)
			}
			var payload Payload
			_ = json.Unmarshal(payloadJSON, &payload)
			payload.FileIdentifier = fid
			payload.TaskType = taskType

			hit, ok := byID[id]
			if !ok {
				hit = &FullTextHit{ID: id, Text: text, Payload: payload}
				byID[id] = hit
				order = append(order, id)
			}
			hit.Scores = append(hit.Scores, TermScore{Term: term, Score: score})
			hit.Highlights = append(hit.Highlights, highlightSpans(text, term)...)
		}
		rows.Close()
	}

	hits := make([]FullTextHit, 0, len(order))
	for _, id := range order {
		hits = append(hits, *byID[id])
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return aggregateScore(hits[i].Scores, aggregateMax) > aggregateScore(hits[j].Scores, aggregateMax)
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// highlightSpans finds every case-insensitive occurrence of term in text.
func highlightSpans(text, term string) []Highlight {
	if term == "" {
		return nil
	}
	lowerText := strings.ToLower(text)
	lowerTerm := strings.ToLower(term)
	var spans []Highlight
	from := 0
	for {
		idx := strings.Index(lowerText[from:], lowerTerm)
		if idx < 0 {
			break
		}
		start := from + idx
		end := start + len(lowerTerm)
		spans = append(spans, Highlight{Start: start, End: end, Term: term})
		from = end
	}
	return spans
}

func (p *postgresStore) DeleteByFileIdentifier(ctx context.Context, fid string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM text_chunks WHERE file_identifier=$1`, fid)
	if err != nil {
		return fmt.Errorf("searchstore: delete %s: %w", fid, err)
	}
	return nil
}
