package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/parttimenerd/sampler-comparison/internal/capture"
	"github.com/parttimenerd/sampler-comparison/internal/config"
	"github.com/parttimenerd/sampler-comparison/internal/logging"
	"github.com/parttimenerd/sampler-comparison/internal/stackstore"
)

const (
	storeSuffix   = ".stacks"
	profileSuffix = ".pprof"
)

// setup resolves the effective configuration (file, then environment, then
// explicitly set flags) and builds the logger every command starts from.
func setup() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, zerolog.Logger{}, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if rootCmd.PersistentFlags().Changed("pretty") {
		cfg.Log.Pretty = logPretty
	}
	return cfg, logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}), nil
}

// Flag values win over config values, but only when the user actually set
// them; the fallback helpers encode that rule once.

func fallbackInt(flags *pflag.FlagSet, name string, current, fallback int) int {
	if flags.Changed(name) {
		return current
	}
	return fallback
}

func fallbackDuration(flags *pflag.FlagSet, name string, current, fallback time.Duration) time.Duration {
	if flags.Changed(name) {
		return current
	}
	return fallback
}

func fallbackString(flags *pflag.FlagSet, name string, current, fallback string) string {
	if flags.Changed(name) {
		return current
	}
	return fallback
}

// isProfilePath reports whether the input file is a pprof profile rather
// than a persisted store.
func isProfilePath(path string) bool {
	return strings.HasSuffix(path, profileSuffix)
}

// loadStores reads every input into stores. Store files load first, in
// argument order; pprof profiles follow, converted at the max depth of the
// first store file so mixed inputs stay comparable. When depthSet marks an
// explicit choice (or no store file is given), depth is used instead.
func loadStores(paths []string, depth int, depthSet bool, opts capture.Options, logger zerolog.Logger) ([]*stackstore.Store, error) {
	var storePaths, profilePaths []string
	for _, p := range paths {
		if isProfilePath(p) {
			profilePaths = append(profilePaths, p)
		} else {
			storePaths = append(storePaths, p)
		}
	}

	var stores []*stackstore.Store
	for _, p := range storePaths {
		s, err := stackstore.LoadFile(p)
		if err != nil {
			return nil, fmt.Errorf("loading store %s: %w", p, err)
		}
		logger.Debug().
			Str("file", p).
			Str("store", s.Name()).
			Int("samples", s.TotalSampleCount()).
			Msg("Loaded store")
		stores = append(stores, s)
	}

	if !depthSet && len(stores) > 0 {
		depth = stores[0].MaxDepth()
	}
	for _, p := range profilePaths {
		converted, err := capture.ReadProfileFile(p, depth, opts, logger)
		if err != nil {
			return nil, err
		}
		stores = append(stores, converted...)
	}
	return stores, nil
}

// sanitizeStoreName maps a store name to a safe file stem. Anything outside
// letters, digits, '.', '-' and '_' becomes an underscore.
func sanitizeStoreName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9',
			ch == '.', ch == '-', ch == '_':
			b.WriteRune(ch)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "store"
	}
	return b.String()
}
