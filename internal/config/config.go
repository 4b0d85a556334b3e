// Package config loads the CLI defaults from an optional yaml file with
// environment variable overrides. Flags always win over config values; the
// ignored-thread set and the persisted store format are fixed properties of
// the core and deliberately have no knobs here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/parttimenerd/sampler-comparison/internal/analysis"
)

// ConfigFileName is the per-user config file looked up in the home
// directory when no --config flag is given.
const ConfigFileName = ".sampler-comparison.yaml"

// Config carries the defaults shared by the CLI commands.
type Config struct {
	Log      Log      `yaml:"log"`
	Sampling Sampling `yaml:"sampling"`
	Analysis Analysis `yaml:"analysis"`
	Archive  Archive  `yaml:"archive"`
}

// Log configures the logger.
type Log struct {
	Level  string `yaml:"level" env:"SAMPLERCMP_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"SAMPLERCMP_LOG_PRETTY"`
}

// Sampling configures the in-process sampling agent defaults.
type Sampling struct {
	Interval time.Duration `yaml:"interval" env:"SAMPLERCMP_INTERVAL"`
	MaxDepth int           `yaml:"max_depth" env:"SAMPLERCMP_MAX_DEPTH"`
}

// Analysis configures interval statistics defaults.
type Analysis struct {
	MinSamplesPerThread int `yaml:"min_samples_per_thread" env:"SAMPLERCMP_MIN_SAMPLES_PER_THREAD"`
}

// Archive configures the DuckDB archive sink.
type Archive struct {
	Path string `yaml:"path" env:"SAMPLERCMP_ARCHIVE_PATH"`
}

// Default returns the built-in defaults applied below config file and
// environment.
func Default() Config {
	return Config{
		Log: Log{
			Level:  "info",
			Pretty: true,
		},
		Sampling: Sampling{
			Interval: 10 * time.Millisecond,
			MaxDepth: 100,
		},
		Analysis: Analysis{
			MinSamplesPerThread: analysis.DefaultMinSamplesPerThread,
		},
		Archive: Archive{
			Path: "samples.duckdb",
		},
	}
}

// DefaultPath returns the per-user config file path, or "" when no home
// directory can be resolved (containerized environments).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ConfigFileName)
}

// Load builds the effective configuration: defaults, overlaid by the yaml
// file at path, overlaid by SAMPLERCMP_* environment variables.
//
// An empty path means the per-user default location, which is allowed to be
// absent. An explicitly given path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from the user's own flag or home dir
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
			// No per-user config file is the common case.
		default:
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := LoadFromEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
