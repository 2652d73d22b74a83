// Command lumenarchive wires the content processing and retrieval engine
// (C1-C8) into a runnable process: it loads configuration, constructs the
// storage, ledger, model-handler bundle, codecs, task catalogue, scheduler
// pool, index writer, and query engine, then dispatches on a small set of
// subcommands the way the teacher's cmd/ binaries each front one service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"

	"lumenarchive/internal/codec"
	lcfg "lumenarchive/internal/config"
	"lumenarchive/internal/index"
	"lumenarchive/internal/ingest"
	"lumenarchive/internal/ledger"
	"lumenarchive/internal/logging"
	"lumenarchive/internal/modelhandler"
	"lumenarchive/internal/query"
	"lumenarchive/internal/scheduler"
	"lumenarchive/internal/searchstore"
	"lumenarchive/internal/storage"
	"lumenarchive/internal/tasks"
	"lumenarchive/internal/tasks/audio"
	"lumenarchive/internal/tasks/image"
	"lumenarchive/internal/tasks/rawtext"
	"lumenarchive/internal/tasks/video"
	"lumenarchive/internal/tasks/webpage"
	"lumenarchive/internal/telemetry"
)

// runtime bundles every constructed component so the subcommand handlers
// below can drive them without re-threading a dozen parameters (§9:
// "model this as an explicit engine object", applied one level up to the
// process itself).
type runtime struct {
	log    zerolog.Logger
	models *modelhandler.Bundle
	pool   *scheduler.Pool
	orch   *ingest.Orchestrator
	query  *query.Engine
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the engine YAML config file")
	flag.Parse()

	log := logging.New("lumenarchive", os.Stderr)

	cfg, err := lcfg.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: lumenarchive [-config path] <serve|ingest|query> ...")
		os.Exit(2)
	}

	otelShutdown, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:    cfg.Obs.ServiceName,
		ServiceVersion: cfg.Obs.ServiceVersion,
		Environment:    cfg.Obs.Environment,
		OTLPEndpoint:   cfg.Obs.OTLP,
	})
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without telemetry")
		otelShutdown = func(context.Context) error { return nil }
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	r, err := build(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}

	switch args[0] {
	case "serve":
		r.serve()
	case "ingest":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: lumenarchive ingest <file_identifier> <file_path>")
			os.Exit(2)
		}
		r.ingestOnce(args[1], args[2])
	case "query":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: lumenarchive query <text>")
			os.Exit(2)
		}
		r.queryOnce(args[1])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", args[0])
		os.Exit(2)
	}
}

// build constructs every component (C1-C8) from cfg, the way the teacher's
// service main functions assemble their dependency graph before starting
// the listener loop.
func build(ctx context.Context, cfg *lcfg.Config, log zerolog.Logger) (*runtime, error) {
	store, err := buildStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("build storage: %w", err)
	}

	lg := ledger.New(store, log.With().Str("subcomponent", "ledger").Logger())

	models := buildModels(cfg.Models, cfg.Vector)

	codecs := tasks.Codecs{
		Video:    &codec.FFmpeg{BinDir: cfg.FFmpegBinDir},
		Audio:    &codec.FFmpeg{BinDir: cfg.FFmpegBinDir},
		Image:    &codec.FFmpeg{BinDir: cfg.FFmpegBinDir},
		Document: codec.HTMLDocumentCodec{},
		WebPage:  codec.ChromeWebPageCodec{},
	}

	taskCtx := &tasks.Context{
		Storage:   store,
		Ledger:    lg,
		Models:    models,
		Codecs:    codecs,
		Log:       log.With().Str("subcomponent", "tasks").Logger(),
		ChunkSize: cfg.ChunkSize,
		ModelIDs: tasks.ModelIDs{
			ImageCaption:        cfg.Models.ImageCaption.Model,
			AudioTranscript:     "whisper:" + cfg.Models.WhisperModelPath,
			TextEmbedding:       cfg.Models.TextEmbedding.Model,
			MultiModalEmbedding: cfg.Models.MultiModalEmbedding.Model,
			LLM:                 cfg.Models.LLM.Model,
		},
		Language: cfg.Models.WhisperLanguage,
	}

	cat := tasks.NewCatalogue()
	video.Register(cat)
	audio.Register(cat)
	image.Register(cat)
	rawtext.Register(cat)
	webpage.Register(cat)

	pool := scheduler.New(cat, taskCtx, log.With().Str("subcomponent", "scheduler").Logger(), cfg.NotifyBufferSize)

	vectors, fulltext, err := buildSearchStores(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build search stores: %w", err)
	}

	tok := query.NewTokenizer(cfg.StopwordSet())
	writer := index.New(store, lg, vectors, fulltext, tok.Tokenize)

	qe := query.New(vectors, fulltext, cfg.StopwordSet(), query.Models{
		TextEmbedding:       models.TextEmbedding,
		MultiModalEmbedding: models.MultiModalEmbedding,
	})

	orch := ingest.New(lg, pool, writer, ingest.ProbeCodecs{
		Video: codecs.Video,
		Audio: codecs.Audio,
		Image: codecs.Image,
	}, log.With().Str("subcomponent", "ingest").Logger())

	return &runtime{
		log:    log,
		models: models,
		pool:   pool,
		orch:   orch,
		query:  qe,
	}, nil
}

func buildStorage(ctx context.Context, cfg lcfg.StorageConfig) (storage.Storage, error) {
	switch cfg.Backend {
	case "", "local":
		return storage.NewLocal(cfg.LocalRoot)
	case "s3":
		return storage.NewS3(ctx, storage.S3Config{
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func buildModels(cfg lcfg.ModelsConfig, vec lcfg.VectorDBConfig) *modelhandler.Bundle {
	b := &modelhandler.Bundle{}

	if cfg.ImageCaption.BaseURL != "" {
		b.ImageCaption = modelhandler.New[modelhandler.CaptionInput, string](
			modelhandler.NewCaptionBackend(toHTTPConfig(cfg.ImageCaption)), cfg.SmallModelIdle,
			modelhandler.WithRole[modelhandler.CaptionInput, string]("image_caption"))
	}
	if cfg.WhisperModelPath != "" {
		b.AudioTranscript = modelhandler.New[[]float32, []modelhandler.TranscriptSegment](
			modelhandler.NewTranscriptBackend(cfg.WhisperModelPath, cfg.WhisperLanguage), cfg.SmallModelIdle,
			modelhandler.WithRole[[]float32, []modelhandler.TranscriptSegment]("audio_transcript"))
	}
	if cfg.TextEmbedding.BaseURL != "" {
		b.TextEmbedding = modelhandler.New[string, []float32](
			modelhandler.NewEmbeddingBackend(toHTTPConfig(cfg.TextEmbedding), vec.TextDimension), cfg.EmbeddingIdle,
			modelhandler.WithRole[string, []float32]("text_embedding"))
	}
	if cfg.MultiModalEmbedding.BaseURL != "" {
		b.MultiModalEmbedding = modelhandler.New[string, []float32](
			modelhandler.NewEmbeddingBackend(toHTTPConfig(cfg.MultiModalEmbedding), vec.VisionDimension), cfg.EmbeddingIdle,
			modelhandler.WithRole[string, []float32]("multi_modal_embedding"))
	}
	if cfg.LLM.BaseURL != "" {
		b.LLM = modelhandler.New[modelhandler.LLMPrompt, string](
			modelhandler.NewLLMBackend(toHTTPConfig(cfg.LLM)), cfg.SmallModelIdle,
			modelhandler.WithRole[modelhandler.LLMPrompt, string]("llm"))
	}
	b.Tokenizer = modelhandler.New[string, int](modelhandler.NewTokenizerBackend(), cfg.SmallModelIdle,
		modelhandler.WithRole[string, int]("tokenizer"))

	return b
}

func toHTTPConfig(e lcfg.EndpointConfig) modelhandler.HTTPClientConfig {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return modelhandler.HTTPClientConfig{
		BaseURL:   e.BaseURL,
		Path:      e.Path,
		APIHeader: e.APIHeader,
		APIKey:    e.APIKey,
		Model:     e.Model,
		Timeout:   timeout,
	}
}

func buildSearchStores(ctx context.Context, cfg *lcfg.Config) (searchstore.VectorStore, searchstore.FullTextStore, error) {
	qclient, err := qdrant.NewClient(&qdrant.Config{Host: cfg.Vector.Address})
	if err != nil {
		return nil, nil, fmt.Errorf("connect qdrant: %w", err)
	}
	vectors := searchstore.NewQdrant(qclient)
	if err := vectors.EnsureCollection(ctx, cfg.Vector.LanguageCollection, cfg.Vector.TextDimension); err != nil {
		return nil, nil, fmt.Errorf("ensure language collection: %w", err)
	}
	if err := vectors.EnsureCollection(ctx, cfg.Vector.VisionCollection, cfg.Vector.VisionDimension); err != nil {
		return nil, nil, fmt.Errorf("ensure vision collection: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.FullText.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	fulltext, err := searchstore.NewPostgres(ctx, pool)
	if err != nil {
		return nil, nil, fmt.Errorf("init postgres full-text store: %w", err)
	}

	return vectors, fulltext, nil
}

// serve runs the scheduler pool and the ingest orchestrator's notification
// listener until interrupted.
func (r *runtime) serve() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go r.pool.Run(ctx)
	go r.orch.Listen(ctx)

	r.log.Info().Msg("lumenarchive engine running")
	<-sig
	r.log.Info().Msg("shutting down")
	cancel()
	r.pool.Wait()
	r.models.Shutdown(context.Background())
}

// ingestOnce upserts a single asset and blocks until its dispatched
// pipeline drains, for one-shot CLI use rather than long-running service
// operation.
func (r *runtime) ingestOnce(fid, path string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go r.pool.Run(ctx)
	go r.orch.Listen(ctx)

	if err := r.orch.Upsert(ctx, ingest.Request{FileIdentifier: fid, FilePath: path}); err != nil {
		r.log.Error().Err(err).Msg("upsert failed")
		os.Exit(1)
	}

	drain := make(chan struct{})
	go func() {
		for n := range r.pool.Notifications() {
			r.log.Info().Str("file_identifier", n.FileIdentifier).Str("task_type", string(n.TaskType)).
				Str("status", string(n.Status)).Msg("task notification")
		}
		close(drain)
	}()

	// The orchestrator's dispatch table only enqueues terminal tasks; give
	// the pool a moment to drain the resulting dependency chain before
	// tearing down for this one-shot invocation.
	time.Sleep(200 * time.Millisecond)
	cancel()
	r.pool.Wait()
	<-drain
}

// queryOnce runs one query against the engine and prints the results as
// JSON.
func (r *runtime) queryOnce(text string) {
	results, err := r.query.Search(context.Background(), text, 20)
	if err != nil {
		r.log.Error().Err(err).Msg("query failed")
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(results)
}
