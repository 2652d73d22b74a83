package webpage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/modelhandler"
	"lumenarchive/internal/tasks"
)

type chunkParams struct {
	ChunkSize int `json:"chunk_size"`
}

// chunkFile is one packed window: its character span into the extracted
// text and its joined text.
type chunkFile struct {
	StartIndex int64  `json:"start_index"`
	EndIndex   int64  `json:"end_index"`
	Text       string `json:"text"`
}

// Chunk implements WebPage::Chunk: paragraph-split, token-budgeted
// sliding-overlap chunking of the Extract task's text, File "chunks.json".
type Chunk struct{}

func (Chunk) Type() asset.TaskType           { return asset.WebPageChunk }
func (Chunk) Dependencies() []asset.TaskType { return []asset.TaskType{asset.WebPageExtract} }

func (Chunk) Parameters(ctx *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return tasks.MarshalParameters(chunkParams{ChunkSize: ctx.ChunkSize})
}

func (Chunk) OutputTemplate(_ string) asset.Output {
	return asset.FileOutput("chunks.json")
}

func (Chunk) Run(goCtx context.Context, ctx *tasks.Context, fi tasks.FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	deps := tasks.DependencyOutputs(rec, run)
	extractRun, ok := deps[asset.WebPageExtract]
	if !ok {
		return tasks.ErrMissingDependency
	}

	data, err := ctx.Storage.Read(goCtx, tasks.AssetPath(fi.FileIdentifier, extractRun.Output.Path))
	if err != nil {
		return fmt.Errorf("web_page.chunk: read extract: %w", err)
	}
	var ef extractFile
	if err := json.Unmarshal(data, &ef); err != nil {
		return fmt.Errorf("web_page.chunk: parse extract: %w", err)
	}

	items := paragraphItems(ef.Text)
	if err := goCtxDone(goCtx); err != nil {
		return err
	}

	packed := tasks.PackChunks(items, ctx.ChunkSize)
	out := make([]chunkFile, len(packed))
	for i, c := range packed {
		out[i] = chunkFile{StartIndex: c.Start, EndIndex: c.End, Text: c.Text}
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("web_page.chunk: marshal: %w", err)
	}
	return ctx.Storage.Write(goCtx, tasks.AssetPath(fi.FileIdentifier, run.Output.Path), payload)
}

// paragraphItems splits text on blank lines, carrying each paragraph's
// character offsets for back-trace.
func paragraphItems(text string) []tasks.ChunkItem {
	var items []tasks.ChunkItem
	var para strings.Builder
	var offset int64
	var paraStart int64 = -1

	flush := func(end int64) {
		if para.Len() == 0 {
			return
		}
		t := para.String()
		items = append(items, tasks.ChunkItem{
			Start:  paraStart,
			End:    end,
			Text:   t,
			Tokens: modelhandler.EstimateTokens(t),
		})
		para.Reset()
		paraStart = -1
	}

	for _, line := range strings.Split(text, "\n") {
		lineStart := offset
		offset += int64(len(line)) + 1

		if strings.TrimSpace(line) == "" {
			flush(lineStart)
			continue
		}
		if paraStart < 0 {
			paraStart = lineStart
		}
		if para.Len() > 0 {
			para.WriteByte('\n')
		}
		para.WriteString(line)
	}
	flush(offset)
	return items
}

var _ tasks.Task = Chunk{}
