// Package ingest implements the upsert orchestrator (spec component C6):
// given a freshly-seen or re-ingested asset, it probes/persists metadata,
// dispatches the terminal task for its media kind onto the scheduler pool,
// and, once that task's embeddings land, hands the asset off to the index
// writer (C7).
package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/codec"
	"lumenarchive/internal/index"
	"lumenarchive/internal/ledger"
	"lumenarchive/internal/scheduler"
)

// Request is one asset to upsert.
type Request struct {
	FileIdentifier string
	FilePath       string
	// Metadata, if non-nil, is trusted as-is and persisted without probing.
	Metadata *asset.ContentMetadata
}

// Orchestrator drives upserts: it owns the ledger, the scheduler pool, and
// the index writer, and wires the pool's notification stream to C7.
type Orchestrator struct {
	ledger  *ledger.Ledger
	pool    *scheduler.Pool
	indexer *index.Writer
	codecs  ProbeCodecs
	log     zerolog.Logger
}

// ProbeCodecs are the decode façades used to probe a file's metadata when
// none is supplied.
type ProbeCodecs struct {
	Video codec.VideoCodec
	Audio codec.AudioCodec
	Image codec.ImageCodec
}

// New builds an Orchestrator. Callers must also start pool.Run in its own
// goroutine and call Orchestrator.Listen to drive index writes.
func New(lg *ledger.Ledger, pool *scheduler.Pool, indexer *index.Writer, codecs ProbeCodecs, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{ledger: lg, pool: pool, indexer: indexer, codecs: codecs, log: log.With().Str("component", "ingest").Logger()}
}

// Listen drains the pool's notification stream for the Orchestrator's
// lifetime, invoking the index writer whenever a terminal embedding task
// finishes. It blocks until goCtx is cancelled; run it in its own
// goroutine.
func (o *Orchestrator) Listen(goCtx context.Context) {
	for {
		select {
		case <-goCtx.Done():
			return
		case n, ok := <-o.pool.Notifications():
			if !ok {
				return
			}
			if n.Status != scheduler.Finished || !asset.TerminalTasks[n.TaskType] {
				continue
			}
			if err := o.indexer.IndexAsset(goCtx, n.FileIdentifier, n.TaskType); err != nil {
				o.log.Error().Str("file_identifier", n.FileIdentifier).Str("task_type", string(n.TaskType)).
					Err(err).Msg("index write failed")
			}
		}
	}
}

// Upsert loads or probes req's metadata, persists it, and dispatches the
// terminal task(s) for its media kind.
func (o *Orchestrator) Upsert(goCtx context.Context, req Request) error {
	rec, err := o.ledger.Load(goCtx, req.FileIdentifier)
	if err != nil {
		return fmt.Errorf("ingest: load record for %s: %w", req.FileIdentifier, err)
	}

	meta := req.Metadata
	if meta == nil {
		if rec.Metadata.Kind != asset.KindUnknown {
			m := rec.Metadata
			meta = &m
		} else {
			probed, err := o.probe(goCtx, req.FilePath)
			if err != nil {
				return fmt.Errorf("ingest: probe %s: %w", req.FilePath, err)
			}
			meta = &probed
		}
	}

	if err := o.ledger.SetMetadata(goCtx, rec, *meta); err != nil {
		return fmt.Errorf("ingest: persist metadata for %s: %w", req.FileIdentifier, err)
	}

	o.dispatch(req.FileIdentifier, req.FilePath, *meta)
	return nil
}

// dispatch enqueues the terminal task(s) for meta.Kind, per §4.6's dispatch
// table.
func (o *Orchestrator) dispatch(fid, filePath string, meta asset.ContentMetadata) {
	switch meta.Kind {
	case asset.KindVideo:
		o.pool.AddTask(fid, filePath, asset.VideoFrame, scheduler.Low)
		if meta.Video != nil && meta.Video.HasAudio {
			o.pool.AddTask(fid, filePath, asset.VideoTransChunkSumEmbed, scheduler.Low)
		}
	case asset.KindAudio:
		o.pool.AddTask(fid, filePath, asset.AudioWaveform, scheduler.Normal)
		o.pool.AddTask(fid, filePath, asset.AudioTransChunkSumEmbed, scheduler.Normal)
	case asset.KindImage:
		o.pool.AddTask(fid, filePath, asset.ImageCaptionEmbed, scheduler.Normal)
		o.pool.AddTask(fid, filePath, asset.ImageEmbed, scheduler.Normal)
	case asset.KindRawText:
		o.pool.AddTask(fid, filePath, asset.RawTextChunkEmbed, scheduler.Normal)
	case asset.KindWebPage:
		o.pool.AddTask(fid, filePath, asset.WebPageChunkEmbed, scheduler.Normal)
	case asset.KindUnknown:
		o.log.Info().Str("file_identifier", fid).Msg("unknown media kind, nothing to dispatch")
	}
}

// probe determines an asset's media kind and metadata from its file
// extension and, for video/audio/image, the corresponding codec's probe
// call. Raw-text files are classified by extension alone, with no codec
// call. Web pages always arrive with explicit metadata (a URL, at minimum)
// and so are never probed here.
func (o *Orchestrator) probe(goCtx context.Context, filePath string) (asset.ContentMetadata, error) {
	kind := classify(filePath)
	switch kind {
	case asset.KindVideo:
		if o.codecs.Video == nil {
			return asset.ContentMetadata{}, fmt.Errorf("ingest: no video codec configured")
		}
		p, err := o.codecs.Video.ProbeVideo(goCtx, filePath)
		if err != nil {
			return asset.ContentMetadata{}, err
		}
		vm := asset.VideoMetadata{Width: p.Width, Height: p.Height, DurationMs: p.DurationMs, BitRate: p.BitRate, FPS: p.FPS, HasAudio: p.HasAudio}
		if p.HasAudio {
			vm.Audio = &asset.EmbeddedAudioMetadata{BitRate: p.AudioBitRate, DurationMs: p.AudioDurationMs}
		}
		return asset.VideoContent(vm), nil

	case asset.KindAudio:
		if o.codecs.Audio == nil {
			return asset.ContentMetadata{}, fmt.Errorf("ingest: no audio codec configured")
		}
		p, err := o.codecs.Audio.ProbeAudio(goCtx, filePath)
		if err != nil {
			return asset.ContentMetadata{}, err
		}
		return asset.AudioContent(asset.AudioMetadata{DurationMs: p.DurationMs, BitRate: p.BitRate, SampleRate: p.SampleRate}), nil

	case asset.KindImage:
		if o.codecs.Image == nil {
			return asset.ContentMetadata{}, fmt.Errorf("ingest: no image codec configured")
		}
		width, height, format, err := o.codecs.Image.ProbeImage(goCtx, filePath)
		if err != nil {
			return asset.ContentMetadata{}, err
		}
		return asset.ImageContent(asset.ImageMetadata{Width: width, Height: height, Format: format}), nil

	case asset.KindRawText:
		return asset.RawTextContent(asset.RawTextMetadata{}), nil

	default:
		return asset.Unknown(), nil
	}
}
