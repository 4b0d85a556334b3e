package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parttimenerd/sampler-comparison/internal/stackstore"
)

func fp(b byte) stackstore.Fingerprint {
	var f stackstore.Fingerprint
	f[0] = b
	return f
}

func storeWithTimes(t *testing.T, thread string, nanos ...uint64) *stackstore.Store {
	t.Helper()
	s, err := stackstore.New("test", 16)
	require.NoError(t, err)
	for _, ts := range nanos {
		s.AddFingerprint(thread, ts, fp(1))
	}
	return s
}

func TestComputeIntervalTwoGaps(t *testing.T) {
	// Samples at 0, 10ms and 21ms give gaps of 10ms and 11ms.
	s := storeWithTimes(t, "T1", 0, 10_000_000, 21_000_000)

	out := ComputeInterval(s, 2)
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, 10*time.Millisecond, out.Min)
	assert.Equal(t, 11*time.Millisecond, out.Max)
	assert.Equal(t, time.Duration(10_500_000), out.Mean)
}

func TestComputeIntervalSortsByTimestamp(t *testing.T) {
	// Insertion order is not time order; the gaps must come from the
	// chronological sequence.
	s := storeWithTimes(t, "T1", 21_000_000, 0, 10_000_000)

	out := ComputeInterval(s, 2)
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, 10*time.Millisecond, out.Min)
	assert.Equal(t, 11*time.Millisecond, out.Max)
}

func TestComputeIntervalTrimmed(t *testing.T) {
	// Eleven samples whose consecutive gaps are 1ms..10ms. Trimming drops
	// the lowest and highest ranked gap, leaving 2ms..9ms.
	times := make([]uint64, 11)
	var cum uint64
	for i := 1; i <= 10; i++ {
		cum += uint64(i) * 1_000_000
		times[i] = cum
	}
	s := storeWithTimes(t, "T1", times...)

	out := ComputeInterval(s, DefaultMinSamplesPerThread)
	assert.Equal(t, 10, out.Count)
	assert.Equal(t, 1*time.Millisecond, out.Min)
	assert.Equal(t, 2*time.Millisecond, out.Percentile10)
	assert.Equal(t, 10*time.Millisecond, out.Percentile90)
	assert.Equal(t, 10*time.Millisecond, out.Max)
	assert.Equal(t, time.Duration(5_500_000), out.Mean)
	assert.Equal(t, time.Duration(5_500_000), out.TrimmedMean)
	assert.InDelta(t, 2_872_281, float64(out.StdDev), 1)
	assert.InDelta(t, 2_291_287, float64(out.TrimmedStdDev), 1)

	// Ordering invariant over the summary.
	assert.LessOrEqual(t, out.Min, out.Percentile10)
	assert.LessOrEqual(t, out.Percentile10, out.Percentile90)
	assert.LessOrEqual(t, out.Percentile90, out.Max)
}

func TestComputeIntervalSingleGap(t *testing.T) {
	// One gap: the trim window is empty, so trimmed statistics stay zero
	// while the untrimmed ones are populated.
	s := storeWithTimes(t, "T1", 5_000_000, 10_000_000)

	out := ComputeInterval(s, 2)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, 5*time.Millisecond, out.Mean)
	assert.Equal(t, 5*time.Millisecond, out.Min)
	assert.Equal(t, 5*time.Millisecond, out.Max)
	assert.Equal(t, 5*time.Millisecond, out.Percentile10)
	assert.Equal(t, 5*time.Millisecond, out.Percentile90)
	assert.Equal(t, time.Duration(0), out.StdDev)
	assert.Equal(t, time.Duration(0), out.TrimmedMean)
	assert.Equal(t, time.Duration(0), out.TrimmedStdDev)
}

func TestComputeIntervalSkipsSparseThreads(t *testing.T) {
	s, err := stackstore.New("test", 16)
	require.NoError(t, err)

	// "sparse" has 9 samples, below the default threshold, and must not
	// contribute; "dense" has exactly 10 and contributes 9 gaps.
	for i := 0; i < 9; i++ {
		s.AddFingerprint("sparse", uint64(i)*1_000, fp(1))
	}
	for i := 0; i < 10; i++ {
		s.AddFingerprint("dense", uint64(i)*2_000_000, fp(2))
	}

	out := ComputeInterval(s, DefaultMinSamplesPerThread)
	assert.Equal(t, 9, out.Count)
	assert.Equal(t, 2*time.Millisecond, out.Min)
	assert.Equal(t, 2*time.Millisecond, out.Max)
}

func TestComputeIntervalPoolsThreads(t *testing.T) {
	s, err := stackstore.New("test", 16)
	require.NoError(t, err)
	s.AddFingerprint("a", 0, fp(1))
	s.AddFingerprint("a", 3_000_000, fp(1))
	s.AddFingerprint("b", 0, fp(2))
	s.AddFingerprint("b", 7_000_000, fp(2))

	out := ComputeInterval(s, 2)
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, 3*time.Millisecond, out.Min)
	assert.Equal(t, 7*time.Millisecond, out.Max)
	assert.Equal(t, 5*time.Millisecond, out.Mean)
}

func TestComputeIntervalEmpty(t *testing.T) {
	s, err := stackstore.New("empty", 16)
	require.NoError(t, err)

	assert.Equal(t, ComputedInterval{}, ComputeInterval(s, 2))

	// A store whose only thread is below the threshold also yields the
	// zero summary.
	sparse := storeWithTimes(t, "T1", 1, 2, 3)
	assert.Equal(t, ComputedInterval{}, ComputeInterval(sparse, 10))
}
