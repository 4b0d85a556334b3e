package capture

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/pprof/profile"
	"github.com/rs/zerolog"

	"github.com/parttimenerd/sampler-comparison/internal/safe"
	"github.com/parttimenerd/sampler-comparison/internal/stackstore"
)

// Per-sample metadata keys. String labels name the sampled thread (checked
// in order), the tid num label is the numeric fallback, and the timestamp
// num label carries nanoseconds.
var threadLabelKeys = []string{"thread_comm", "comm", "thread"}

const (
	tidLabelKey       = "tid"
	timestampLabelKey = "timestamp"
)

const defaultSyntheticPeriod = 10 * time.Millisecond

// Options adjusts how a profile maps to stores.
type Options struct {
	// Name overrides the base store name. Empty derives it from the
	// profile's default sample type.
	Name string

	// SyntheticTimestamps fabricates per-sample timestamps from the profile
	// start time and sampling period instead of reading the timestamp
	// label, overriding any real ones. Interval statistics over fabricated
	// timestamps only reflect the nominal period; this exists so that
	// aggregated profiles without per-sample timestamps can still feed the
	// divergence comparison.
	SyntheticTimestamps bool
}

// ReadProfileFile reads a pprof profile from disk and converts it into
// stores. Gzipped profiles are handled by the pprof parser itself.
func ReadProfileFile(path string, maxDepth int, opts Options, logger zerolog.Logger) ([]*stackstore.Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening profile: %w", err)
	}
	defer safe.Close(f, logger, "failed to close profile file")

	stores, err := ReadProfile(f, maxDepth, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}
	return stores, nil
}

// ReadProfile parses a pprof profile and converts each sample record into
// one observation of (thread, stack, timestamp).
//
// Two stores can come back: the main store carries every sample with a
// usable stack, and, when the profiler recorded stackless failure samples,
// a second "<name> with errors" store additionally carries those under the
// error fingerprint sentinel. Empty stores are dropped, so the result may
// also be empty for a profile without samples.
//
// Samples without a timestamp label are skipped and counted; a profile
// where no sample carries one fails unless Options.SyntheticTimestamps is
// set, since interval analysis over a single fabricated instant would be
// meaningless.
func ReadProfile(r io.Reader, maxDepth int, opts Options, logger zerolog.Logger) ([]*stackstore.Store, error) {
	prof, err := profile.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing pprof data: %w", err)
	}
	return convert(prof, maxDepth, opts, logger)
}

func convert(prof *profile.Profile, maxDepth int, opts Options, logger zerolog.Logger) ([]*stackstore.Store, error) {
	name := opts.Name
	if name == "" {
		name = defaultName(prof)
	}

	primary, err := stackstore.New(name, maxDepth)
	if err != nil {
		return nil, err
	}
	withErrors, err := stackstore.New(name+" with errors", maxDepth)
	if err != nil {
		return nil, err
	}

	var (
		base      = prof.TimeNanos
		period    = syntheticPeriod(prof)
		missingTS = 0
		stackless = 0
	)
	for i, s := range prof.Sample {
		var ts uint64
		if opts.SyntheticTimestamps {
			ts, _ = safe.Int64ToUint64(base + int64(i)*int64(period))
		} else {
			labeled, ok := sampleTimestamp(s)
			if !ok {
				missingTS++
				continue
			}
			ts = labeled
		}

		thread := threadName(s)
		frames := sampleFrames(s)
		if len(frames) == 0 {
			stackless++
			withErrors.AddFingerprint(thread, ts, stackstore.ErrorFingerprint)
			continue
		}
		primary.Ingest(thread, frames, ts)
		withErrors.Ingest(thread, frames, ts)
	}

	if missingTS == len(prof.Sample) && len(prof.Sample) > 0 {
		return nil, fmt.Errorf("profile has no per-sample %q labels; pass a profiler that records them or enable synthetic timestamps", timestampLabelKey)
	}
	if missingTS > 0 {
		logger.Warn().
			Int("skipped", missingTS).
			Int("total", len(prof.Sample)).
			Msg("Samples without timestamp label skipped")
	}
	logger.Debug().
		Str("store", name).
		Int("samples", len(prof.Sample)).
		Int("stackless", stackless).
		Msg("Converted pprof profile")

	stores := make([]*stackstore.Store, 0, 2)
	if primary.TotalSampleCount() > 0 {
		stores = append(stores, primary)
	}
	if stackless > 0 && withErrors.TotalSampleCount() > 0 {
		stores = append(stores, withErrors)
	}
	return stores, nil
}

func defaultName(p *profile.Profile) string {
	if p.DefaultSampleType != "" {
		return p.DefaultSampleType
	}
	if len(p.SampleType) > 0 && p.SampleType[0].Type != "" {
		return p.SampleType[0].Type
	}
	return "pprof"
}

func threadName(s *profile.Sample) string {
	for _, key := range threadLabelKeys {
		if vals := s.Label[key]; len(vals) > 0 && vals[0] != "" {
			return vals[0]
		}
	}
	if tids := s.NumLabel[tidLabelKey]; len(tids) > 0 {
		return fmt.Sprintf("thread-%d", tids[0])
	}
	return "unknown"
}

func sampleTimestamp(s *profile.Sample) (uint64, bool) {
	vals := s.NumLabel[timestampLabelKey]
	if len(vals) == 0 {
		return 0, false
	}
	ts, _ := safe.Int64ToUint64(vals[0])
	return ts, true
}

// sampleFrames flattens a sample's locations into leaf-first frames, one
// frame per line so inlined calls keep their own identity.
func sampleFrames(s *profile.Sample) []stackstore.Frame {
	var frames []stackstore.Frame
	for _, loc := range s.Location {
		for _, line := range loc.Line {
			if line.Function == nil || line.Function.Name == "" {
				continue
			}
			frames = append(frames, SplitSymbol(line.Function.Name))
		}
	}
	return frames
}

func syntheticPeriod(p *profile.Profile) time.Duration {
	if p.Period > 0 && p.PeriodType != nil && p.PeriodType.Unit == "nanoseconds" {
		return time.Duration(p.Period)
	}
	return defaultSyntheticPeriod
}
