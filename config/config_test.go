package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 3, cfg.Search.DefaultK)
	assert.Equal(t, 10*time.Second, cfg.SearchTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay())
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_OverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_dir: /var/lib/patentindex
embedder:
  host: http://embeddings:8000
  model: text-embedding-3-small
build:
  workers: 4
  rate_limit: 2.5
  rate_burst: 4
search:
  default_k: 5
server:
  allow_origins: ["https://example.org"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/patentindex", cfg.DataDir)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, 4, cfg.Build.Workers)
	assert.Equal(t, 2.5, cfg.Build.RateLimit)
	assert.Equal(t, 4, cfg.Build.RateBurst)
	assert.Equal(t, 3, cfg.Build.MaxAttempts, "unset fields get defaults")
	assert.Equal(t, 5, cfg.Search.DefaultK)
	assert.Equal(t, []string{"https://example.org"}, cfg.Server.AllowOrigins)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Search.DefaultK = 7

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestAIConfig(t *testing.T) {
	t.Setenv("TEST_EMBEDDING_TOKEN", "secret")
	cfg := Default()
	cfg.Embedder.Host = "http://embeddings:8000"
	cfg.Embedder.TokenEnv = "TEST_EMBEDDING_TOKEN"

	aiCfg, err := cfg.AIConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://embeddings:8000/v1", aiCfg.EmbeddingHost)
	assert.Equal(t, "secret", aiCfg.Token)
	assert.Equal(t, 32, aiCfg.BatchSize)
	assert.Equal(t, 30*time.Second, aiCfg.RequestTimeout)

	cfg.Embedder.BatchSize = -1
	_, err = cfg.AIConfig()
	assert.Error(t, err)
}
