package index

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/tasks"
)

// textFromSummaries reads a TransChunkSum dependency's Folder of
// "<start>-<end>.json" chunk summaries, keyed by span for pairing with the
// embed task's same-named "<start>-<end>.embedding" files.
func textFromSummaries(goCtx context.Context, w *Writer, fid string, depRun *asset.TaskRunRecord) (map[string]string, error) {
	entries, err := w.storage.ListDir(goCtx, tasks.AssetPath(fid, depRun.Output.Path))
	if err != nil {
		return nil, fmt.Errorf("index: list chunk summaries: %w", err)
	}

	texts := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		name := strings.TrimSuffix(e.Name, ".json")
		data, err := w.storage.Read(goCtx, tasks.AssetPath(fid, depRun.Output.Path+"/"+e.Name))
		if err != nil {
			return nil, fmt.Errorf("index: read chunk summary %s: %w", e.Name, err)
		}
		var cs struct {
			Summary string `json:"summary"`
		}
		if err := json.Unmarshal(data, &cs); err != nil {
			return nil, fmt.Errorf("index: parse chunk summary %s: %w", e.Name, err)
		}
		texts[name] = cs.Summary
	}
	return texts, nil
}

// textFromChunks reads a RawText::Chunk/WebPage::Chunk dependency's single
// chunks.json array, keyed by span for pairing with the embed task's
// "<start>-<end>.embedding" files.
func textFromChunks(goCtx context.Context, w *Writer, fid string, depRun *asset.TaskRunRecord) (map[string]string, error) {
	data, err := w.storage.Read(goCtx, tasks.AssetPath(fid, depRun.Output.Path))
	if err != nil {
		return nil, fmt.Errorf("index: read chunks: %w", err)
	}
	var chunks []struct {
		StartIndex int64  `json:"start_index"`
		EndIndex   int64  `json:"end_index"`
		Text       string `json:"text"`
	}
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("index: parse chunks: %w", err)
	}

	texts := make(map[string]string, len(chunks))
	for _, c := range chunks {
		texts[fmt.Sprintf("%d-%d", c.StartIndex, c.EndIndex)] = c.Text
	}
	return texts, nil
}
