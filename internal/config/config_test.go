package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
artifacts_root: /data/artifacts
storage:
  backend: local
  local_root: /data/artifacts
models:
  text_embedding:
    base_url: http://localhost:8000
    model: stella-A
  whisper_model_path: /models/ggml-base.en.bin
vector_db:
  address: localhost:6334
fulltext_db:
  dsn: postgres://localhost/lumenarchive
stopwords:
  - the
  - a
  - AND
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeSample(t))
	require.NoError(t, err)

	require.Equal(t, "/data/artifacts", cfg.ArtifactsRoot)
	require.Equal(t, "local", cfg.Storage.Backend)
	require.Equal(t, "stella-A", cfg.Models.TextEmbedding.Model)
	require.Equal(t, "localhost:6334", cfg.Vector.Address)
	require.Equal(t, "postgres://localhost/lumenarchive", cfg.FullText.DSN)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeSample(t))
	require.NoError(t, err)

	require.Equal(t, 512, cfg.ChunkSize)
	require.Equal(t, 256, cfg.NotifyBufferSize)
	require.Equal(t, "language", cfg.Vector.LanguageCollection)
	require.Equal(t, "vision", cfg.Vector.VisionCollection)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestStopwordSet(t *testing.T) {
	cfg, err := Load(writeSample(t))
	require.NoError(t, err)

	set := cfg.StopwordSet()
	require.True(t, set["the"])
	require.True(t, set["a"])
	require.True(t, set["and"])
	require.False(t, set["hello"])
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("LUMENARCHIVE_FULLTEXT_DSN", "postgres://override/db")
	cfg, err := Load(writeSample(t))
	require.NoError(t, err)
	require.Equal(t, "postgres://override/db", cfg.FullText.DSN)
}

func TestObsDefaultsAndEnvOverride(t *testing.T) {
	cfg, err := Load(writeSample(t))
	require.NoError(t, err)
	require.Equal(t, "lumenarchive", cfg.Obs.ServiceName)
	require.Empty(t, cfg.Obs.OTLP)

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	cfg, err = Load(writeSample(t))
	require.NoError(t, err)
	require.Equal(t, "http://collector:4318", cfg.Obs.OTLP)
}
