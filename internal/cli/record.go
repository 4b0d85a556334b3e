package cli

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/parttimenerd/sampler-comparison/pkg/agent"
)

// newRecordCmd creates the record command.
func newRecordCmd() *cobra.Command {
	var (
		interval time.Duration
		depth    int
		duration time.Duration
		out      string
		name     string
		busyWork int
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record this process with the in-process sampler",
		Long: `Record the goroutines of this tool itself and write a sample store.

This exists to validate the pipeline and to produce demo recordings without
an external profiler; programs that want to be recorded embed pkg/agent
directly. With --busy-work the recording gets non-trivial stacks to look at.

Examples:
  # 10 second self-recording with some artificial load
  sampler-comparison record --busy-work 4 --out self.stacks

  # Record until Ctrl-C, sampling every 5ms
  sampler-comparison record --interval 5ms --duration 0 --out self.stacks.gz`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			interval = fallbackDuration(cmd.Flags(), "interval", interval, cfg.Sampling.Interval)
			depth = fallbackInt(cmd.Flags(), "depth", depth, cfg.Sampling.MaxDepth)

			a, err := agent.Start(agent.Config{
				Interval:            interval,
				MaxDepth:            depth,
				StoreName:           name,
				OutputPath:          out,
				MinSamplesPerThread: cfg.Analysis.MinSamplesPerThread,
				Logger:              logger,
				SummaryWriter:       cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}

			if busyWork > 0 {
				stopBusy := startBusyWork(busyWork)
				defer stopBusy()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var timeout <-chan time.Time
			if duration > 0 {
				timer := time.NewTimer(duration)
				defer timer.Stop()
				timeout = timer.C
			}
			select {
			case <-ctx.Done():
				logger.Info().Msg("Interrupted, stopping recording")
			case <-timeout:
			}
			return a.Stop()
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", agent.DefaultInterval, "Sampling interval")
	cmd.Flags().IntVar(&depth, "depth", agent.DefaultMaxDepth, "Max stack depth per fingerprint")
	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "Recording duration (0 records until interrupted)")
	cmd.Flags().StringVar(&out, "out", agent.DefaultOutput, "Output store file (.stacks, or .stacks.gz for compressed)")
	cmd.Flags().StringVar(&name, "name", agent.DefaultStoreName, "Store name in the recording")
	cmd.Flags().IntVar(&busyWork, "busy-work", 0, "Spawn N busy goroutines so the recording is non-trivial")

	return cmd
}

// startBusyWork spawns n goroutines alternating between a short computation
// and a short sleep, so a self-recording sees both on-CPU and parked stacks.
func startBusyWork(n int) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			busyLoop(done)
		}()
	}
	return func() {
		close(done)
		wg.Wait()
	}
}

func busyLoop(done <-chan struct{}) {
	var sum uint64
	for {
		select {
		case <-done:
			return
		default:
		}
		sum = churn(sum)
		time.Sleep(time.Millisecond)
	}
}

// churn burns a little CPU on data-dependent work the compiler cannot
// discard.
func churn(seed uint64) uint64 {
	h := seed
	for i := 0; i < 4096; i++ {
		h = h*1099511628211 + uint64(i)
	}
	return h
}
