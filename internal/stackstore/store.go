package stackstore

import (
	"fmt"
	"sort"
	"sync"
)

// SamplingThreadName is the thread name the in-process sampling agent
// assigns to its own worker, so that the sampler never profiles itself.
const SamplingThreadName = "SamplingAgent"

// ignoredThreads is the closed set of infrastructure threads whose samples
// say nothing about the profiled workload. The JVM service thread names are
// included so that flight-recorder captures and live captures filter the
// same way.
var ignoredThreads = map[string]struct{}{
	SamplingThreadName:    {},
	"Reference Handler":   {},
	"Finalizer":           {},
	"Signal Dispatcher":   {},
	"Common-Cleaner":      {},
	"JFR Periodic Tasks":  {},
	"JFR Recorder Thread": {},
	"Notification Thread": {},
}

// IsIgnoredThread reports whether samples from the named thread are dropped
// at ingestion.
func IsIgnoredThread(threadName string) bool {
	_, ok := ignoredThreads[threadName]
	return ok
}

// Sample is one observed stack occurrence: when it was taken and the
// fingerprint of what was running. Timestamps are nanoseconds in a single
// monotonic clock domain shared by every sample that will be compared.
type Sample struct {
	TimeNanos   uint64
	Fingerprint Fingerprint
}

// Store aggregates timestamped fingerprints per thread for one named
// capture source. Per-thread lists keep insertion order, which is not
// necessarily time order; consumers sort when they need chronology.
//
// All methods are safe for concurrent use. Ingestion from multiple
// capturing goroutines interleaves at sample granularity.
type Store struct {
	name     string
	maxDepth int

	mu       sync.RWMutex
	byThread map[string][]Sample
}

// New returns an empty store. maxDepth bounds how many frames of each
// ingested stack contribute to its fingerprint and is fixed for the
// lifetime of the store; stores with different depths are not comparable.
func New(name string, maxDepth int) (*Store, error) {
	if maxDepth < 1 {
		return nil, fmt.Errorf("store %q: max depth must be at least 1, got %d", name, maxDepth)
	}
	return &Store{
		name:     name,
		maxDepth: maxDepth,
		byThread: make(map[string][]Sample),
	}, nil
}

// Name returns the capture source name this store was created with.
func (s *Store) Name() string { return s.name }

// MaxDepth returns the fingerprint depth bound this store was created with.
func (s *Store) MaxDepth() int { return s.maxDepth }

// Ingest filters, fingerprints and records one raw sample. It reports
// whether the sample was recorded: samples from ignored threads and stacks
// with fewer than two frames are dropped, which is an expected outcome and
// not an error.
func (s *Store) Ingest(threadName string, frames []Frame, timeNanos uint64) bool {
	if IsIgnoredThread(threadName) {
		return false
	}
	fp, ok := FingerprintStack(frames, s.maxDepth)
	if !ok {
		return false
	}
	s.AddFingerprint(threadName, timeNanos, fp)
	return true
}

// AddFingerprint records an already-fingerprinted sample, bypassing the
// thread filter and the minimum-stack-size check. Loaders restoring a
// persisted store and capture paths that record sampling failures (as
// ErrorFingerprint) use this directly.
func (s *Store) AddFingerprint(threadName string, timeNanos uint64, fp Fingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byThread[threadName] = append(s.byThread[threadName], Sample{TimeNanos: timeNanos, Fingerprint: fp})
}

// ThreadNames returns the name of every thread section in the store,
// sorted for deterministic iteration. Loaded stores may contain sections
// with no samples.
func (s *Store) ThreadNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.byThread))
	for name := range s.byThread {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Samples returns a copy of the recorded samples for one thread, in
// insertion order. The result is nil for a thread with no samples.
func (s *Store) Samples(threadName string) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recorded := s.byThread[threadName]
	if len(recorded) == 0 {
		return nil
	}
	out := make([]Sample, len(recorded))
	copy(out, recorded)
	return out
}

// TotalSampleCount returns the number of recorded samples across all
// threads.
func (s *Store) TotalSampleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, recorded := range s.byThread {
		total += len(recorded)
	}
	return total
}

// FingerprintCounts returns the absolute occurrence count of each distinct
// fingerprint across all threads.
func (s *Store) FingerprintCounts() map[Fingerprint]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Fingerprint]int)
	for _, recorded := range s.byThread {
		for _, sample := range recorded {
			counts[sample.Fingerprint]++
		}
	}
	return counts
}

// FingerprintFrequency returns the relative frequency of each distinct
// fingerprint across all threads, each count divided by the total sample
// count. An empty store yields an empty map.
func (s *Store) FingerprintFrequency() map[Fingerprint]float32 {
	counts := s.FingerprintCounts()

	total := 0
	for _, n := range counts {
		total += n
	}
	freq := make(map[Fingerprint]float32, len(counts))
	if total == 0 {
		return freq
	}
	for fp, n := range counts {
		freq[fp] = float32(n) / float32(total)
	}
	return freq
}
