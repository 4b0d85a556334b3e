// Package agent provides an embeddable in-process sampler. It periodically
// snapshots every goroutine's stack, fingerprints the stacks into a per-thread
// sample store, and on stop persists the store in the line-text format that
// the comparison tooling reads. Importing programs call Start early, keep the
// returned Agent, and call Stop on shutdown.
package agent

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/parttimenerd/sampler-comparison/internal/analysis"
	"github.com/parttimenerd/sampler-comparison/internal/report"
	"github.com/parttimenerd/sampler-comparison/internal/safe"
	"github.com/parttimenerd/sampler-comparison/internal/stackstore"
	"github.com/parttimenerd/sampler-comparison/pkg/version"
)

// Defaults applied by Start for zero-valued Config fields.
const (
	DefaultInterval  = 10 * time.Millisecond
	DefaultMaxDepth  = 100
	DefaultStoreName = "runtime.Stack"
	DefaultOutput    = "samples.stacks"
)

// Config configures a sampling session. The zero value is usable: it samples
// every 10ms at depth 100 into "samples.stacks", logs nothing, and prints the
// interval summary to stdout.
type Config struct {
	// Interval is the target time between samples. The loop subtracts the
	// cost of taking a sample from the following pause, so the cadence holds
	// as long as a sample is cheaper than the interval.
	Interval time.Duration

	// MaxDepth bounds how many root-side frames contribute to each stack
	// fingerprint. Recordings meant to be compared must share it.
	MaxDepth int

	// StoreName names the capture source in the persisted store.
	StoreName string

	// OutputPath is where Stop writes the store. A ".gz" suffix compresses.
	OutputPath string

	// MinSamplesPerThread is the per-thread floor for the interval summary
	// printed on stop; it does not affect what gets recorded.
	MinSamplesPerThread int

	// Logger receives session lifecycle logs. The zero value logs nothing.
	Logger zerolog.Logger

	// SummaryWriter receives the interval summary table on stop. Defaults to
	// os.Stdout; set io.Discard to suppress the table.
	SummaryWriter io.Writer
}

func (c Config) withDefaults() Config {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.StoreName == "" {
		c.StoreName = DefaultStoreName
	}
	if c.OutputPath == "" {
		c.OutputPath = DefaultOutput
	}
	if c.MinSamplesPerThread == 0 {
		c.MinSamplesPerThread = analysis.DefaultMinSamplesPerThread
	}
	if c.SummaryWriter == nil {
		c.SummaryWriter = os.Stdout
	}
	return c
}

// Agent is a running sampling session. One worker goroutine takes the
// samples; Stop ends it, persists the store, and emits the summary.
type Agent struct {
	cfg    Config
	logger zerolog.Logger
	store  *stackstore.Store

	session string
	epoch   time.Time
	epochNs uint64

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// Start begins sampling in a new goroutine and returns immediately. The
// first sample is taken right away, before the first pause.
func Start(cfg Config) (*Agent, error) {
	cfg = cfg.withDefaults()
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("sampling interval must be positive, got %v", cfg.Interval)
	}

	store, err := stackstore.New(cfg.StoreName, cfg.MaxDepth)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	epochNs, _ := safe.Int64ToUint64(now.UnixNano())
	a := &Agent{
		cfg:     cfg,
		store:   store,
		session: uuid.NewString(),
		epoch:   now,
		epochNs: epochNs,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	a.logger = cfg.Logger.With().
		Str("component", "agent").
		Str("session", a.session).
		Logger()

	a.logger.Info().
		Str("version", version.String()).
		Dur("interval", cfg.Interval).
		Int("max_depth", cfg.MaxDepth).
		Str("store", cfg.StoreName).
		Str("output", cfg.OutputPath).
		Msg("Starting sampler")
	a.logHostSnapshot()

	go a.run()
	return a, nil
}

// Store exposes the live store, e.g. for embedders that want to inspect
// counts mid-recording. The store is safe for concurrent reads while the
// sampler runs.
func (a *Agent) Store() *stackstore.Store { return a.store }

// Session returns the unique id of this recording session.
func (a *Agent) Session() string { return a.session }

// Stop ends sampling, waits for the worker to finish, writes the store to
// the configured output path, and prints the interval summary. It is
// idempotent; every call returns the result of the first.
func (a *Agent) Stop() error {
	a.stopOnce.Do(func() {
		close(a.stop)
		<-a.done
		a.stopErr = a.flush()
	})
	return a.stopErr
}

func (a *Agent) run() {
	defer close(a.done)

	selfID := currentGoroutineID()
	buf := make([]byte, 256*1024)

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		started := time.Now()
		buf = a.sampleOnce(buf, selfID)

		pause := a.cfg.Interval - time.Since(started)
		if pause <= 0 {
			// Sampling overran the interval; resample immediately but stay
			// responsive to Stop.
			select {
			case <-a.stop:
				return
			default:
			}
			continue
		}
		timer.Reset(pause)
		select {
		case <-a.stop:
			return
		case <-timer.C:
		}
	}
}

// sampleOnce dumps all goroutine stacks and ingests them under one shared
// timestamp. The worker's own goroutine is recorded under the sampling
// thread name, which the store's ignored-thread filter drops.
func (a *Agent) sampleOnce(buf []byte, selfID uint64) []byte {
	ts := a.epochNs + uint64(time.Since(a.epoch))
	dump, buf := captureDump(buf)
	for _, g := range parseGoroutineDump(dump) {
		name := fmt.Sprintf("goroutine-%d", g.id)
		if g.id == selfID {
			name = stackstore.SamplingThreadName
		}
		a.store.Ingest(name, g.frames, ts)
	}
	return buf
}

func (a *Agent) flush() error {
	elapsed := time.Since(a.epoch)
	a.logger.Info().
		Dur("duration", elapsed).
		Int("samples", a.store.TotalSampleCount()).
		Msg("Stopping sampler")

	if err := stackstore.SaveFile(a.store, a.cfg.OutputPath); err != nil {
		return fmt.Errorf("persisting recording: %w", err)
	}
	a.logger.Info().
		Str("output", a.cfg.OutputPath).
		Int("threads", len(a.store.ThreadNames())).
		Msg("Recording written")

	stores := []*stackstore.Store{a.store}
	if err := report.IntervalTable(a.cfg.SummaryWriter, stores, a.cfg.MinSamplesPerThread); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to render interval summary")
	}
	return nil
}

// logHostSnapshot records the machine facts that make recordings comparable
// across hosts. Failures degrade to a warning; sampling does not depend on
// gopsutil.
func (a *Agent) logHostSnapshot() {
	evt := a.logger.Info().Int("goroutines", runtime.NumGoroutine())
	if cores, err := cpu.Counts(true); err == nil {
		evt = evt.Int("cpu_cores", cores)
	} else {
		a.logger.Warn().Err(err).Msg("Failed to read CPU core count")
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		evt = evt.Str("host_memory", humanize.IBytes(vm.Total))
	} else {
		a.logger.Warn().Err(err).Msg("Failed to read host memory size")
	}
	evt.Msg("Host snapshot")
}
