package agent

import (
	"bytes"
	"io"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parttimenerd/sampler-comparison/internal/stackstore"
	"github.com/parttimenerd/sampler-comparison/internal/testutil"
)

func TestAgentRecordsAndPersists(t *testing.T) {
	out := filepath.Join(t.TempDir(), "run.stacks")
	a, err := Start(Config{
		Interval:      time.Millisecond,
		MaxDepth:      50,
		StoreName:     "test-run",
		OutputPath:    out,
		Logger:        testutil.NewTestLogger(t),
		SummaryWriter: io.Discard,
	})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, a.Stop())
	assert.NoError(t, a.Stop(), "Stop must be idempotent")

	loaded, err := stackstore.LoadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "test-run", loaded.Name())
	assert.Equal(t, 50, loaded.MaxDepth())
	assert.Positive(t, loaded.TotalSampleCount())
	assert.NotContains(t, loaded.ThreadNames(), stackstore.SamplingThreadName,
		"the sampler must not record itself")

	for _, thread := range loaded.ThreadNames() {
		samples := loaded.Samples(thread)
		sorted := sort.SliceIsSorted(samples, func(i, j int) bool {
			return samples[i].TimeNanos < samples[j].TimeNanos
		})
		assert.True(t, sorted, "samples of %q must be recorded in time order", thread)
	}
}

func TestAgentWritesCompressedOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "run.stacks.gz")
	a, err := Start(Config{
		Interval:      time.Millisecond,
		OutputPath:    out,
		Logger:        testutil.NewTestLogger(t),
		SummaryWriter: io.Discard,
	})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, a.Stop())

	loaded, err := stackstore.LoadFile(out)
	require.NoError(t, err)
	assert.Positive(t, loaded.TotalSampleCount())
}

func TestAgentStopPrintsIntervalSummary(t *testing.T) {
	var summary bytes.Buffer
	out := filepath.Join(t.TempDir(), "run.stacks")
	a, err := Start(Config{
		Interval:            time.Millisecond,
		StoreName:           "summary-run",
		OutputPath:          out,
		MinSamplesPerThread: 1,
		Logger:              testutil.NewTestLogger(t),
		SummaryWriter:       &summary,
	})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, a.Stop())

	assert.Contains(t, summary.String(), "Samples")
	assert.Contains(t, summary.String(), "summary-run")
}

func TestAgentDefaults(t *testing.T) {
	out := filepath.Join(t.TempDir(), "defaults.stacks")
	a, err := Start(Config{
		OutputPath:    out,
		Logger:        testutil.NewTestLogger(t),
		SummaryWriter: io.Discard,
	})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, a.Stop())
	}()

	assert.Equal(t, DefaultStoreName, a.Store().Name())
	assert.Equal(t, DefaultMaxDepth, a.Store().MaxDepth())
	assert.NotEmpty(t, a.Session())
}

func TestAgentRejectsNegativeInterval(t *testing.T) {
	_, err := Start(Config{Interval: -time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval")
}

func TestAgentSessionsAreUnique(t *testing.T) {
	dir := t.TempDir()
	first, err := Start(Config{
		OutputPath:    filepath.Join(dir, "a.stacks"),
		Logger:        testutil.NewTestLogger(t),
		SummaryWriter: io.Discard,
	})
	require.NoError(t, err)
	second, err := Start(Config{
		OutputPath:    filepath.Join(dir, "b.stacks"),
		Logger:        testutil.NewTestLogger(t),
		SummaryWriter: io.Discard,
	})
	require.NoError(t, err)

	assert.NotEqual(t, first.Session(), second.Session())
	require.NoError(t, first.Stop())
	require.NoError(t, second.Stop())
}
