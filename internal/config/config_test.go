package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 256, cfg.HTTP.MaxConcurrent)
	assert.Equal(t, "cypher", cfg.GraphStore.Dialect)
	assert.Equal(t, 10, cfg.GraphStore.PoolSize)
	assert.Equal(t, 1_000, cfg.Cache.L1ResultEntries)
	assert.Equal(t, 10_000, cfg.Cache.L1EmbeddingEntries)
	assert.Equal(t, 300*time.Second, cfg.Cache.L2TTL)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 100, cfg.Search.MaxLimit)
	assert.Equal(t, 5, cfg.Search.MaxBFSDepth)
	assert.Equal(t, 60, cfg.Search.RRFK)
	assert.Equal(t, 0.85, cfg.Search.DedupSimThreshold)
	require.NoError(t, cfg.Validate())
}

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, New(), cfg)
}

func TestLoadLayersYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte("http:\n  addr: \":9090\"\nsearch:\n  default_limit: 5\n")
	require.NoError(t, os.WriteFile(path, yaml, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	// Unset fields keep the defaults this test didn't override.
	assert.Equal(t, 100, cfg.Search.MaxLimit)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsMaxLimitOutOfRange(t *testing.T) {
	cfg := New()
	cfg.Search.MaxLimit = 0
	assert.Error(t, cfg.Validate())

	cfg = New()
	cfg.Search.MaxLimit = 5000
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsDefaultLimitAboveMax(t *testing.T) {
	cfg := New()
	cfg.Search.DefaultLimit = cfg.Search.MaxLimit + 1
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBFSDepthOutOfRange(t *testing.T) {
	cfg := New()
	cfg.Search.MaxBFSDepth = 6
	assert.Error(t, cfg.Validate())

	cfg = New()
	cfg.Search.MaxBFSDepth = -1
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownDialect(t *testing.T) {
	cfg := New()
	cfg.GraphStore.Dialect = "postgres"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositivePoolSize(t *testing.T) {
	cfg := New()
	cfg.GraphStore.PoolSize = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveDimension(t *testing.T) {
	cfg := New()
	cfg.Embedding.Dimension = 0
	assert.Error(t, cfg.Validate())
}
