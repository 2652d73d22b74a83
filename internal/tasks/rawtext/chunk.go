// Package rawtext implements the RawText media kind's task catalogue:
// split the source file into paragraphs and pack them into token-budgeted
// chunks, then embed each chunk's text.
package rawtext

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/modelhandler"
	"lumenarchive/internal/tasks"
)

type chunkParams struct {
	ChunkSize int `json:"chunk_size"`
}

// chunkFile is one packed window: its character span into the source file
// and its joined text.
type chunkFile struct {
	StartIndex int64  `json:"start_index"`
	EndIndex   int64  `json:"end_index"`
	Text       string `json:"text"`
}

// Chunk implements RawText::Chunk: paragraph-split, token-budgeted
// sliding-overlap chunking of the source text, File "chunks.json".
type Chunk struct{}

func (Chunk) Type() asset.TaskType           { return asset.RawTextChunk }
func (Chunk) Dependencies() []asset.TaskType { return nil }

func (Chunk) Parameters(ctx *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return tasks.MarshalParameters(chunkParams{ChunkSize: ctx.ChunkSize})
}

func (Chunk) OutputTemplate(_ string) asset.Output {
	return asset.FileOutput("chunks.json")
}

func (Chunk) Run(goCtx context.Context, ctx *tasks.Context, fi tasks.FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	var items []tasks.ChunkItem
	if isMarkupSource(fi.FilePath) && ctx.Codecs.Document != nil {
		text, err := ctx.Codecs.Document.ExtractText(goCtx, fi.FilePath)
		if err != nil {
			return fmt.Errorf("raw_text.chunk: extract source: %w", err)
		}
		items = paragraphItemsFromText(text)
	} else {
		f, err := os.Open(fi.FilePath)
		if err != nil {
			return fmt.Errorf("raw_text.chunk: open source: %w", err)
		}
		defer f.Close()

		items, err = paragraphItems(f)
		if err != nil {
			return fmt.Errorf("raw_text.chunk: read source: %w", err)
		}
	}
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
		return fmt.Errorf("raw_text.chunk: marshal: %w", err)
	}
	return ctx.Storage.Write(goCtx, tasks.AssetPath(fi.FileIdentifier, run.Output.Path), payload)
}

// isMarkupSource reports whether path names a rich-markup document that
// needs DocumentCodec's HTML/markdown-to-text conversion before chunking,
// rather than being read as plain text directly.
func isMarkupSource(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") ||
		strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown")
}

// paragraphItemsFromText is paragraphItems over an already-extracted string
// rather than a file handle, used for the DocumentCodec path.
func paragraphItemsFromText(text string) []tasks.ChunkItem {
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

// paragraphItems splits text into blank-line-delimited paragraphs, each
// carrying its character offsets into the source for back-trace.
func paragraphItems(f *os.File) ([]tasks.ChunkItem, error) {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var items []tasks.ChunkItem
	var para strings.Builder
	var offset int64
	var paraStart int64 = -1

	flush := func(end int64) {
		if para.Len() == 0 {
			return
		}
		text := para.String()
		items = append(items, tasks.ChunkItem{
			Start:  paraStart,
			End:    end,
			Text:   text,
			Tokens: modelhandler.EstimateTokens(text),
		})
		para.Reset()
		paraStart = -1
	}

	for scanner.Scan() {
		line := scanner.Text()
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
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func goCtxDone(goCtx context.Context) error {
	select {
	case <-goCtx.Done():
		return goCtx.Err()
	default:
		return nil
	}
}

var _ tasks.Task = Chunk{}
