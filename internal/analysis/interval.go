// Package analysis derives statistics from fully ingested sample stores:
// inter-sample timing gaps for one store and distribution divergence
// between two stores. Everything here is a pure function over store
// contents; nothing is cached between calls.
package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/parttimenerd/sampler-comparison/internal/safe"
	"github.com/parttimenerd/sampler-comparison/internal/stackstore"
)

// DefaultMinSamplesPerThread is the per-thread sample count below which a
// thread contributes no gaps to interval statistics. Standard reporting
// uses this value.
const DefaultMinSamplesPerThread = 10

// ComputedInterval summarizes the timing gaps between consecutive samples
// of one store. All durations are nanosecond-resolution; Count is the
// number of gaps, not the number of samples. When a store yields no gaps
// the whole struct stays at its zero value, and when trimming leaves
// nothing the trimmed fields stay zero while the untrimmed ones are
// populated.
type ComputedInterval struct {
	Count         int
	Mean          time.Duration
	StdDev        time.Duration
	TrimmedMean   time.Duration
	TrimmedStdDev time.Duration
	Min           time.Duration
	Percentile10  time.Duration
	Percentile90  time.Duration
	Max           time.Duration
}

// ComputeInterval computes gap statistics for one store. Per thread with at
// least minSamplesPerThread samples, the samples are sorted by timestamp
// and consecutive differences collected; the gaps of all qualifying
// threads are then pooled, value-sorted and summarized. Threads below the
// threshold are too sparse to estimate an interval and are skipped
// entirely.
//
// The trimmed statistics drop values below the 10th-percentile rank and at
// or above the 90th-percentile rank.
func ComputeInterval(s *stackstore.Store, minSamplesPerThread int) ComputedInterval {
	gaps := collectGaps(s, minSamplesPerThread)
	if len(gaps) == 0 {
		return ComputedInterval{}
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })

	n := len(gaps)
	p10 := int(float64(n) * 0.1)
	p90 := int(float64(n) * 0.9)
	trimmed := gaps[p10:p90]

	out := ComputedInterval{
		Count:        n,
		Mean:         mean(gaps),
		Min:          gaps[0],
		Percentile10: gaps[p10],
		Percentile90: gaps[p90],
		Max:          gaps[n-1],
	}
	out.StdDev = stdDev(gaps, out.Mean)
	if len(trimmed) > 0 {
		out.TrimmedMean = mean(trimmed)
		out.TrimmedStdDev = stdDev(trimmed, out.TrimmedMean)
	}
	return out
}

func collectGaps(s *stackstore.Store, minSamplesPerThread int) []time.Duration {
	var gaps []time.Duration
	for _, thread := range s.ThreadNames() {
		samples := s.Samples(thread)
		if len(samples) < minSamplesPerThread {
			continue
		}
		sort.Slice(samples, func(i, j int) bool {
			return samples[i].TimeNanos < samples[j].TimeNanos
		})
		for i := 1; i < len(samples); i++ {
			// After sorting the difference cannot go negative, but it can
			// in principle exceed the signed range; clamp instead of
			// wrapping around.
			d, _ := safe.Uint64ToInt64(samples[i].TimeNanos - samples[i-1].TimeNanos)
			gaps = append(gaps, time.Duration(d))
		}
	}
	return gaps
}

// mean truncates to a whole nanosecond; stdDev measures deviation from
// that truncated mean.
func mean(values []time.Duration) time.Duration {
	var sum int64
	for _, v := range values {
		sum += int64(v)
	}
	return time.Duration(float64(sum) / float64(len(values)))
}

func stdDev(values []time.Duration, avg time.Duration) time.Duration {
	var sum float64
	for _, v := range values {
		d := float64(v - avg)
		sum += d * d
	}
	return time.Duration(math.Sqrt(sum / float64(len(values))))
}
