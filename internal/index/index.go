// Package index implements the index writer (spec component C7): after a
// terminal embedding task completes, it enumerates that task's chunks,
// assigns each an idempotent UUIDv5 point id, and upserts a vector point
// plus a full-text row per chunk.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/ledger"
	"lumenarchive/internal/searchstore"
	"lumenarchive/internal/storage"
	"lumenarchive/internal/tasks"
)

// Tokenizer splits text into language-appropriate tokens. The Writer stores
// one but does not apply it: indexOne hands each chunk's raw text to the
// full-text store, which does its own matching.
type Tokenizer func(text string) []string

// Writer is the index writer capability.
type Writer struct {
	storage   storage.Storage
	ledger    *ledger.Ledger
	vectors   searchstore.VectorStore
	fulltext  searchstore.FullTextStore
	tokenizer Tokenizer
}

// New builds a Writer. tokenizer is kept on the Writer and is not used when
// indexing.
func New(store storage.Storage, lg *ledger.Ledger, vectors searchstore.VectorStore, fulltext searchstore.FullTextStore, tokenizer Tokenizer) *Writer {
	return &Writer{storage: store, ledger: lg, vectors: vectors, fulltext: fulltext, tokenizer: tokenizer}
}

// IndexAsset enumerates fid's chunks for the terminal task that just
// completed and writes their vector points and full-text rows. It is safe
// to call repeatedly for the same (fid, taskType): point ids are UUIDv5 of
// the payload, so re-indexing an unchanged run is a no-op upsert.
func (w *Writer) IndexAsset(goCtx context.Context, fid string, taskType asset.TaskType) error {
	rec, err := w.ledger.Load(goCtx, fid)
	if err != nil {
		return fmt.Errorf("index: load record for %s: %w", fid, err)
	}
	run := rec.LatestCompleted(taskType)
	if run == nil {
		return fmt.Errorf("index: no completed run of %s for %s", taskType, fid)
	}

	switch taskType {
	case asset.VideoTransChunkSumEmbed, asset.AudioTransChunkSumEmbed:
		return w.indexSpanFolder(goCtx, fid, taskType, rec, run, textFromSummaries)
	case asset.RawTextChunkEmbed, asset.WebPageChunkEmbed:
		return w.indexSpanFolder(goCtx, fid, taskType, rec, run, textFromChunks)
	case asset.VideoFrameDescEmbed:
		return w.indexFrameCaptions(goCtx, fid, taskType, rec, run)
	case asset.ImageCaptionEmbed:
		return w.indexSingleFile(goCtx, fid, taskType, rec, run, searchstore.CollectionLanguage, true)
	case asset.ImageEmbed:
		return w.indexSingleFile(goCtx, fid, taskType, rec, run, searchstore.CollectionVision, false)
	default:
		return fmt.Errorf("index: %s is not a terminal task", taskType)
	}
}

// textSource reads the text counterpart of an embed task's dependency
// output, keyed by the same span-named files the embed folder uses.
type textSource func(goCtx context.Context, w *Writer, fid string, depRun *asset.TaskRunRecord) (map[string]string, error)

// indexSpanFolder handles the video/audio/rawtext/webpage shape: a Folder
// of "<start>-<end>.embedding" files, each paired by filename with text
// read from the dependency task's output via textFn.
func (w *Writer) indexSpanFolder(goCtx context.Context, fid string, taskType asset.TaskType, rec *asset.TaskRecord, run *asset.TaskRunRecord, textFn textSource) error {
	deps := tasks.DependencyOutputs(rec, run)
	if len(run.Dependencies) == 0 {
		return fmt.Errorf("index: %s has no dependency to read text from", taskType)
	}
	depRun := deps[run.Dependencies[0].TaskType]
	texts, err := textFn(goCtx, w, fid, depRun)
	if err != nil {
		return err
	}

	entries, err := w.storage.ListDir(goCtx, tasks.AssetPath(fid, run.Output.Path))
	if err != nil {
		return fmt.Errorf("index: list %s embeddings: %w", taskType, err)
	}

	for _, e := range entries {
		if e.IsDir {
			continue
		}
		name := strings.TrimSuffix(e.Name, ".embedding")
		start, end, ok := splitSpan(name)
		if !ok {
			continue
		}
		vector, err := readEmbedding(goCtx, w.storage, fid, run.Output.Path+"/"+e.Name)
		if err != nil {
			return fmt.Errorf("index: read embedding %s: %w", e.Name, err)
		}
		payload := searchstore.Payload{
			FileIdentifier: fid,
			TaskType:       string(taskType),
			Metadata:       searchstore.PayloadMetadata{StartTimestamp: &start, EndTimestamp: &end},
		}
		if isPositional(taskType) {
			payload.Metadata = searchstore.PayloadMetadata{StartIndex: &start, EndIndex: &end}
		}
		if err := w.indexOne(goCtx, payload, vector, texts[name], searchstore.CollectionLanguage); err != nil {
			return err
		}
	}
	return nil
}

// indexFrameCaptions handles Video::FrameDescEmbed: a Folder of
// "<ms>.embedding" files, one per captioned frame.
func (w *Writer) indexFrameCaptions(goCtx context.Context, fid string, taskType asset.TaskType, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	deps := tasks.DependencyOutputs(rec, run)
	descRun, ok := deps[asset.VideoFrameDescription]
	if !ok {
		return fmt.Errorf("index: %s missing its frame_description dependency", taskType)
	}

	entries, err := w.storage.ListDir(goCtx, tasks.AssetPath(fid, run.Output.Path))
	if err != nil {
		return fmt.Errorf("index: list %s embeddings: %w", taskType, err)
	}

	for _, e := range entries {
		if e.IsDir {
			continue
		}
		msStr := strings.TrimSuffix(e.Name, ".embedding")
		ms, err := strconv.ParseInt(msStr, 10, 64)
		if err != nil {
			continue
		}
		captionData, err := w.storage.Read(goCtx, tasks.AssetPath(fid, fmt.Sprintf("%s/%s.json", descRun.Output.Path, msStr)))
		if err != nil {
			return fmt.Errorf("index: read caption %s: %w", msStr, err)
		}
		var fc struct {
			Caption string `json:"caption"`
		}
		if err := json.Unmarshal(captionData, &fc); err != nil {
			return fmt.Errorf("index: parse caption %s: %w", msStr, err)
		}
		vector, err := readEmbedding(goCtx, w.storage, fid, run.Output.Path+"/"+e.Name)
		if err != nil {
			return fmt.Errorf("index: read embedding %s: %w", e.Name, err)
		}
		payload := searchstore.Payload{
			FileIdentifier: fid,
			TaskType:       string(taskType),
			Metadata:       searchstore.PayloadMetadata{StartTimestamp: &ms, EndTimestamp: &ms},
		}
		if err := w.indexOne(goCtx, payload, vector, fc.Caption, searchstore.CollectionLanguage); err != nil {
			return err
		}
	}
	return nil
}

// indexSingleFile handles the image tasks: one File embedding, optionally
// with a text counterpart (Caption) for the full-text row.
func (w *Writer) indexSingleFile(goCtx context.Context, fid string, taskType asset.TaskType, rec *asset.TaskRecord, run *asset.TaskRunRecord, collection string, hasText bool) error {
	vector, err := readEmbedding(goCtx, w.storage, fid, run.Output.Path)
	if err != nil {
		return fmt.Errorf("index: read embedding for %s: %w", taskType, err)
	}

	text := ""
	if hasText {
		deps := tasks.DependencyOutputs(rec, run)
		if capRun, ok := deps[asset.ImageCaption]; ok {
			data, err := w.storage.Read(goCtx, tasks.AssetPath(fid, capRun.Output.Path))
			if err != nil {
				return fmt.Errorf("index: read caption for %s: %w", taskType, err)
			}
			var cf struct {
				Caption string `json:"caption"`
			}
			if err := json.Unmarshal(data, &cf); err != nil {
				return fmt.Errorf("index: parse caption for %s: %w", taskType, err)
			}
			text = cf.Caption
		}
	}

	payload := searchstore.Payload{FileIdentifier: fid, TaskType: string(taskType)}
	return w.indexOne(goCtx, payload, vector, text, collection)
}

// indexOne assigns the idempotent UUIDv5 point id, upserts the vector, and
// (if text is non-empty) indexes the full-text row.
func (w *Writer) indexOne(goCtx context.Context, payload searchstore.Payload, vector []float32, text, collection string) error {
	id, err := searchstore.PayloadPointID(payload)
	if err != nil {
		return fmt.Errorf("index: point id: %w", err)
	}
	if err := w.vectors.EnsureCollection(goCtx, collection, len(vector)); err != nil {
		return fmt.Errorf("index: ensure collection %s: %w", collection, err)
	}
	if err := w.vectors.Upsert(goCtx, collection, searchstore.VectorPoint{ID: id, Vector: vector, Payload: payload}); err != nil {
		return fmt.Errorf("index: upsert vector %s: %w", id, err)
	}
	if text == "" {
		return nil
	}
	return w.fulltext.Index(goCtx, id, text, payload)
}

// DeleteAsset removes every indexed row for fid from both stores, used
// when an asset is deleted from the ledger.
func (w *Writer) DeleteAsset(goCtx context.Context, fid string) error {
	if err := w.vectors.DeleteByFileIdentifier(goCtx, fid); err != nil {
		return fmt.Errorf("index: delete vectors for %s: %w", fid, err)
	}
	return w.fulltext.DeleteByFileIdentifier(goCtx, fid)
}

func isPositional(taskType asset.TaskType) bool {
	return taskType == asset.RawTextChunkEmbed || taskType == asset.WebPageChunkEmbed
}

func splitSpan(name string) (start, end int64, ok bool) {
	parts := strings.SplitN(name, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	s, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	e, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return s, e, true
}

func readEmbedding(goCtx context.Context, store storage.Storage, fid, path string) ([]float32, error) {
	data, err := store.Read(goCtx, tasks.AssetPath(fid, path))
	if err != nil {
		return nil, err
	}
	return tasks.DecodeEmbedding(data)
}
