// Package config loads the engine's construction-time parameters (§6
// "Context to core"): the artifacts root, storage backend selection, the
// model-handler bundle's endpoints and model identifiers, the vector-db
// handle parameters, collection names, and the stopword set. It follows
// the teacher's two-layer scheme (an optional .env file loaded via
// godotenv, then a YAML file for the structured bulk of the settings)
// without carrying over the teacher's much larger multi-service loader.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// StorageConfig selects and configures the Storage capability (C1).
type StorageConfig struct {
	Backend string `yaml:"backend"` // "local" or "s3"

	LocalRoot string `yaml:"local_root"`

	S3Bucket       string `yaml:"s3_bucket"`
	S3Prefix       string `yaml:"s3_prefix"`
	S3Region       string `yaml:"s3_region"`
	S3Endpoint     string `yaml:"s3_endpoint"`
	S3AccessKey    string `yaml:"s3_access_key"`
	S3SecretKey    string `yaml:"s3_secret_key"`
	S3UsePathStyle bool   `yaml:"s3_use_path_style"`
}

// EndpointConfig configures one HTTP-backed model handler role.
type EndpointConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Path      string        `yaml:"path"`
	APIHeader string        `yaml:"api_header"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ModelsConfig configures the six model-handler roles (§4.3, §6). A zero
// EndpointConfig (empty BaseURL) for image_caption/llm/
// multi_modal_embedding/text_embedding means that role is left unconfigured
// and tasks needing it fail with ErrModelUnavailable; WhisperModelPath
// empty disables the ASR handler specifically, since it loads from a local
// ggml file rather than an HTTP endpoint.
type ModelsConfig struct {
	ImageCaption        EndpointConfig `yaml:"image_caption"`
	TextEmbedding       EndpointConfig `yaml:"text_embedding"`
	MultiModalEmbedding EndpointConfig `yaml:"multi_modal_embedding"`
	LLM                 EndpointConfig `yaml:"llm"`

	WhisperModelPath string `yaml:"whisper_model_path"`
	WhisperLanguage  string `yaml:"whisper_language"`

	SmallModelIdle time.Duration `yaml:"small_model_idle"`
	EmbeddingIdle  time.Duration `yaml:"embedding_idle"`
}

// VectorDBConfig configures the qdrant collections (C7/C8).
type VectorDBConfig struct {
	Address            string `yaml:"address"`
	LanguageCollection string `yaml:"language_collection"`
	VisionCollection   string `yaml:"vision_collection"`
	TextDimension      int    `yaml:"text_dimension"`
	VisionDimension    int    `yaml:"vision_dimension"`
}

// FullTextDBConfig configures the postgres full-text backend.
type FullTextDBConfig struct {
	DSN string `yaml:"dsn"`
}

// ObsConfig configures the OTLP/HTTP trace and metric exporters (§9's
// ambient stack), mirroring the teacher's own Obs section. An empty OTLP
// leaves telemetry.Init a no-op.
type ObsConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`
	OTLP           string `yaml:"otlp"`
}

// Config is the top-level engine configuration (§6 "Context to core").
type Config struct {
	ArtifactsRoot string `yaml:"artifacts_root"`

	Storage  StorageConfig    `yaml:"storage"`
	Models   ModelsConfig     `yaml:"models"`
	Vector   VectorDBConfig   `yaml:"vector_db"`
	FullText FullTextDBConfig `yaml:"fulltext_db"`
	Obs      ObsConfig        `yaml:"obs"`

	ChunkSize        int      `yaml:"chunk_size"`
	NotifyBufferSize int      `yaml:"notify_buffer_size"`
	FFmpegBinDir     string   `yaml:"ffmpeg_bin_dir"`
	Stopwords        []string `yaml:"stopwords"`
}

// Load reads an optional .env file (via godotenv, ignored if absent), then
// a required YAML config file at path, then applies environment-variable
// overrides for the handful of secrets operators typically keep out of a
// checked-in YAML file (API keys, DSNs, credentials).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return &cfg, nil
}

// applyEnvOverrides lets deployment secrets live in the environment rather
// than the checked-in YAML file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LUMENARCHIVE_S3_ACCESS_KEY"); v != "" {
		c.Storage.S3AccessKey = v
	}
	if v := os.Getenv("LUMENARCHIVE_S3_SECRET_KEY"); v != "" {
		c.Storage.S3SecretKey = v
	}
	if v := os.Getenv("LUMENARCHIVE_FULLTEXT_DSN"); v != "" {
		c.FullText.DSN = v
	}
	if v := os.Getenv("LUMENARCHIVE_IMAGE_CAPTION_API_KEY"); v != "" {
		c.Models.ImageCaption.APIKey = v
	}
	if v := os.Getenv("LUMENARCHIVE_TEXT_EMBEDDING_API_KEY"); v != "" {
		c.Models.TextEmbedding.APIKey = v
	}
	if v := os.Getenv("LUMENARCHIVE_MULTI_MODAL_EMBEDDING_API_KEY"); v != "" {
		c.Models.MultiModalEmbedding.APIKey = v
	}
	if v := os.Getenv("LUMENARCHIVE_LLM_API_KEY"); v != "" {
		c.Models.LLM.APIKey = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Obs.OTLP = v
	}
}

func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 512
	}
	if c.NotifyBufferSize <= 0 {
		c.NotifyBufferSize = 256
	}
	if c.Vector.LanguageCollection == "" {
		c.Vector.LanguageCollection = "language"
	}
	if c.Vector.VisionCollection == "" {
		c.Vector.VisionCollection = "vision"
	}
	if c.Models.SmallModelIdle <= 0 {
		c.Models.SmallModelIdle = 5 * time.Second
	}
	if c.Models.EmbeddingIdle <= 0 {
		c.Models.EmbeddingIdle = 10 * time.Minute
	}
	if c.Obs.ServiceName == "" {
		c.Obs.ServiceName = "lumenarchive"
	}
}

// StopwordSet returns Stopwords as the lowercase lookup set the query
// tokenizer (C8) expects.
func (c *Config) StopwordSet() map[string]bool {
	set := make(map[string]bool, len(c.Stopwords))
	for _, w := range c.Stopwords {
		set[strings.ToLower(strings.TrimSpace(w))] = true
	}
	return set
}

