package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
	assert.Equal(t, 10*time.Millisecond, cfg.Sampling.Interval)
	assert.Equal(t, 100, cfg.Sampling.MaxDepth)
	assert.Equal(t, 10, cfg.Analysis.MinSamplesPerThread)
	assert.Equal(t, "samples.duckdb", cfg.Archive.Path)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log:
  level: debug
  pretty: false
sampling:
  interval: 25ms
  max_depth: 64
analysis:
  min_samples_per_thread: 5
archive:
  path: /tmp/archive.duckdb
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
	assert.Equal(t, 25*time.Millisecond, cfg.Sampling.Interval)
	assert.Equal(t, 64, cfg.Sampling.MaxDepth)
	assert.Equal(t, 5, cfg.Analysis.MinSamplesPerThread)
	assert.Equal(t, "/tmp/archive.duckdb", cfg.Archive.Path)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	// Every untouched field keeps its default.
	assert.Equal(t, 100, cfg.Sampling.MaxDepth)
	assert.Equal(t, 10*time.Millisecond, cfg.Sampling.Interval)
}

func TestLoadExplicitMissingPathFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: ["), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))

	t.Setenv("SAMPLERCMP_LOG_LEVEL", "trace")
	t.Setenv("SAMPLERCMP_MAX_DEPTH", "32")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "trace", cfg.Log.Level)
	assert.Equal(t, 32, cfg.Sampling.MaxDepth)
}
