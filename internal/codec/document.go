package codec

import (
	"context"
	"fmt"
	"os"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// HTMLDocumentCodec converts rich-markup document sources to plain text by
// rendering to Markdown and stripping Markdown syntax, grounded on the
// teacher's internal/tools/web/fetch.go use of html-to-markdown/v2.
type HTMLDocumentCodec struct{}

// ExtractText reads path (HTML or HTML-like markup) and returns its text
// content.
func (HTMLDocumentCodec) ExtractText(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("codec: read document %s: %w", path, err)
	}
	md, err := htmltomarkdown.ConvertString(string(data))
	if err != nil {
		return "", fmt.Errorf("codec: convert %s to markdown: %w", path, err)
	}
	return plainTextFromMarkdown(md), nil
}

// plainTextFromMarkdown strips the handful of Markdown control characters
// a converted document carries, leaving prose suitable for chunking. It is
// intentionally not a full Markdown parser: headings/emphasis/lists read
// fine as plain text once the marker characters are gone.
func plainTextFromMarkdown(md string) string {
	replacer := strings.NewReplacer(
		"#", "", "*", "", "_", "", "`", "",
		"[", "", "]", "", "(", " (", ")", ") ",
	)
	text := replacer.Replace(md)
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

var _ DocumentCodec = HTMLDocumentCodec{}
