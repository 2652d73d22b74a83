// Package webpage implements the WebPage media kind's task catalogue:
// render and extract reader-view text, chunk it, then embed each chunk.
package webpage

import (
	"context"
	"encoding/json"
	"fmt"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/tasks"
)

type extractParams struct{}

// extractFile is the Data shape "extract.json" holds.
type extractFile struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Extract implements WebPage::Extract: render the source URL and pull its
// reader-view title and text, File "extract.json".
type Extract struct{}

func (Extract) Type() asset.TaskType           { return asset.WebPageExtract }
func (Extract) Dependencies() []asset.TaskType { return nil }

func (Extract) Parameters(_ *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return tasks.MarshalParameters(extractParams{})
}

func (Extract) OutputTemplate(_ string) asset.Output {
	return asset.FileOutput("extract.json")
}

func (Extract) Run(goCtx context.Context, ctx *tasks.Context, fi tasks.FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	if rec.Metadata.Kind != asset.KindWebPage || rec.Metadata.WebPage == nil {
		return tasks.ErrInvalidMetadata
	}
	if ctx.Codecs.WebPage == nil {
		return tasks.ErrCodecUnavailable
	}

	extracted, err := ctx.Codecs.WebPage.Extract(goCtx, rec.Metadata.WebPage.URL)
	if err != nil {
		return fmt.Errorf("web_page.extract: %w", err)
	}
	if err := goCtxDone(goCtx); err != nil {
		return err
	}

	payload, err := json.Marshal(extractFile{Title: extracted.Title, Text: extracted.Text})
	if err != nil {
		return fmt.Errorf("web_page.extract: marshal: %w", err)
	}
	return ctx.Storage.Write(goCtx, tasks.AssetPath(fi.FileIdentifier, run.Output.Path), payload)
}

func goCtxDone(goCtx context.Context) error {
	select {
	case <-goCtx.Done():
		return goCtx.Err()
	default:
		return nil
	}
}

var _ tasks.Task = Extract{}
