package rawtext

import "lumenarchive/internal/tasks"

// Register adds every RawText task to cat.
func Register(cat tasks.Catalogue) {
	cat.Register(Chunk{})
	cat.Register(ChunkEmbed{})
}
