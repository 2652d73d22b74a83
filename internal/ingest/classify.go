package ingest

import (
	"path/filepath"
	"strings"

	"lumenarchive/internal/asset"
)

var (
	videoExt = map[string]bool{".mp4": true, ".mov": true, ".mkv": true, ".webm": true, ".avi": true}
	audioExt = map[string]bool{".mp3": true, ".wav": true, ".flac": true, ".m4a": true, ".ogg": true}
	imageExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true}
	textExt  = map[string]bool{".txt": true, ".md": true, ".markdown": true, ".html": true, ".htm": true}
)

// classify guesses an asset's media kind from its file extension. This is
// a best-effort default for assets ingested without explicit metadata;
// callers with better information should supply Request.Metadata directly.
func classify(path string) asset.MediaKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case videoExt[ext]:
		return asset.KindVideo
	case audioExt[ext]:
		return asset.KindAudio
	case imageExt[ext]:
		return asset.KindImage
	case textExt[ext]:
		return asset.KindRawText
	default:
		return asset.KindUnknown
	}
}
