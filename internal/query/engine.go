package query

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"lumenarchive/internal/modelhandler"
	"lumenarchive/internal/searchstore"
)

// Result is one located hit, expanded from a ranked id: one per locator a
// container entry carries (a time range for audio/video chunks, an index
// range for document/web-page chunks, neither for images).
type Result struct {
	FileIdentifier string
	TaskType       string
	Score          float64
	StartTimestamp *int64
	EndTimestamp   *int64
	StartIndex     *int64
	EndIndex       *int64
	Highlight      string
}

// Models is the subset of the model handler bundle the query engine calls:
// a text embedding for the language collection and a multi-modal embedding
// run over the query text for the vision collection.
type Models struct {
	TextEmbedding       *modelhandler.Handler[string, []float32]
	MultiModalEmbedding *modelhandler.Handler[string, []float32]
}

// Engine is the query engine capability (spec component C8).
type Engine struct {
	vectors   searchstore.VectorStore
	fulltext  searchstore.FullTextStore
	tokenizer Tokenizer
	models    Models

	// AggregateMax selects max (true) or average (false, default) when
	// combining a full-text row's per-term scores.
	AggregateMax bool
}

// New builds an Engine over the given stores, stopword set, and query-time
// embedding handlers.
func New(vectors searchstore.VectorStore, fulltext searchstore.FullTextStore, stopwords map[string]bool, models Models) *Engine {
	return &Engine{vectors: vectors, fulltext: fulltext, tokenizer: NewTokenizer(stopwords), models: models}
}

// fanOutResult bundles one fan-out branch's outcome so the three goroutines
// below can each write to their own field without a shared lock.
type fanOutResult struct {
	fullText []searchstore.FullTextHit
	language []searchstore.VectorHit
	vision   []searchstore.VectorHit
}

// Search tokenises query, vectorises it for both vector spaces, fans out to
// the full-text store and both vector collections concurrently, fuses the
// three ranked lists with reciprocal-rank fusion, and expands the top
// maxCount entries into located results.
func (e *Engine) Search(goCtx context.Context, query string, maxCount int) ([]Result, error) {
	tokens := e.tokenizer.Tokenize(query)

	vText, vVision, err := e.vectorise(goCtx, query)
	if err != nil {
		return nil, err
	}

	fan, err := e.fanOut(goCtx, tokens, vText, vVision, maxCount)
	if err != nil {
		return nil, err
	}

	fused := fuseRanked(idsOf(fan.fullText), idsOfVector(fan.language), idsOfVector(fan.vision))
	if maxCount > 0 && len(fused) > maxCount {
		fused = fused[:maxCount]
	}

	byID := indexPayloads(fan)
	highlights := indexHighlights(fan.fullText)

	results := make([]Result, 0, len(fused))
	for rank, id := range fused {
		entry, ok := byID[id]
		if !ok {
			continue
		}
		results = append(results, Result{
			FileIdentifier: entry.FileIdentifier,
			TaskType:       entry.TaskType,
			Score:          1.0 / float64(rrfK+rank+1),
			StartTimestamp: entry.Metadata.StartTimestamp,
			EndTimestamp:   entry.Metadata.EndTimestamp,
			StartIndex:     entry.Metadata.StartIndex,
			EndIndex:       entry.Metadata.EndIndex,
			Highlight:      highlights[id],
		})
	}
	return results, nil
}

// vectorise computes the query's text and multi-modal-as-text embeddings
// concurrently; they have no dependency on each other.
func (e *Engine) vectorise(goCtx context.Context, query string) (text, vision []float32, err error) {
	g, gctx := errgroup.WithContext(goCtx)

	g.Go(func() error {
		results, errs := e.models.TextEmbedding.Process(gctx, []string{query})
		if errs[0] != nil {
			return fmt.Errorf("query: text embedding: %w", errs[0])
		}
		text = results[0]
		return nil
	})
	g.Go(func() error {
		results, errs := e.models.MultiModalEmbedding.Process(gctx, []string{query})
		if errs[0] != nil {
			return fmt.Errorf("query: multi-modal embedding: %w", errs[0])
		}
		vision = results[0]
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return text, vision, nil
}

// fanOut runs the full-text and two vector searches concurrently; none
// depends on another's result.
func (e *Engine) fanOut(goCtx context.Context, tokens []string, vText, vVision []float32, limit int) (fanOutResult, error) {
	var fan fanOutResult
	g, gctx := errgroup.WithContext(goCtx)

	g.Go(func() error {
		if len(tokens) == 0 {
			return nil
		}
		hits, err := e.fulltext.Search(gctx, tokens, e.AggregateMax, limit)
		if err != nil {
			return fmt.Errorf("query: full-text search: %w", err)
		}
		fan.fullText = hits
		return nil
	})
	g.Go(func() error {
		hits, err := e.vectors.Search(gctx, searchstore.CollectionLanguage, vText, limit)
		if err != nil {
			return fmt.Errorf("query: language vector search: %w", err)
		}
		fan.language = hits
		return nil
	})
	g.Go(func() error {
		hits, err := e.vectors.Search(gctx, searchstore.CollectionVision, vVision, limit)
		if err != nil {
			return fmt.Errorf("query: vision vector search: %w", err)
		}
		fan.vision = hits
		return nil
	})

	if err := g.Wait(); err != nil {
		return fanOutResult{}, err
	}
	return fan, nil
}

func idsOf(hits []searchstore.FullTextHit) rankedList {
	ids := make(rankedList, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}

func idsOfVector(hits []searchstore.VectorHit) rankedList {
	ids := make(rankedList, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}

// indexPayloads builds the id -> Payload lookup used to expand a fused id
// back into a located result; a payload carries all the locator
// information back-trace would otherwise need a separate container fetch
// for, since the index writer already denormalises it onto every point.
func indexPayloads(fan fanOutResult) map[string]searchstore.Payload {
	byID := make(map[string]searchstore.Payload)
	for _, h := range fan.fullText {
		byID[h.ID] = h.Payload
	}
	for _, h := range fan.language {
		byID[h.ID] = h.Payload
	}
	for _, h := range fan.vision {
		byID[h.ID] = h.Payload
	}
	return byID
}

// indexHighlights builds the id -> rendered highlight lookup from
// full-text hits; vector-only hits carry no highlight.
func indexHighlights(hits []searchstore.FullTextHit) map[string]string {
	out := make(map[string]string, len(hits))
	for _, h := range hits {
		out[h.ID] = renderHighlight(h.Text, h.Highlights)
	}
	return out
}

// renderHighlight wraps each matched span in text with <em> tags, merging
// overlapping spans so nested or repeated terms don't double-wrap.
func renderHighlight(text string, spans []searchstore.Highlight) string {
	if len(spans) == 0 {
		return ""
	}
	sorted := append([]searchstore.Highlight(nil), spans...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var merged []searchstore.Highlight
	for _, s := range sorted {
		if len(merged) > 0 && s.Start <= merged[len(merged)-1].End {
			if s.End > merged[len(merged)-1].End {
				merged[len(merged)-1].End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}

	var out []byte
	last := 0
	for _, s := range merged {
		if s.Start < last || s.End > len(text) || s.Start > s.End {
			continue
		}
		out = append(out, text[last:s.Start]...)
		out = append(out, "<em>"...)
		out = append(out, text[s.Start:s.End]...)
		out = append(out, "</em>"...)
		last = s.End
	}
	out = append(out, text[last:]...)
	return string(out)
}
