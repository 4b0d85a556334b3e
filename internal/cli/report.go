package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parttimenerd/sampler-comparison/internal/analysis"
	"github.com/parttimenerd/sampler-comparison/internal/capture"
	"github.com/parttimenerd/sampler-comparison/internal/report"
)

// newReportCmd creates the report command.
func newReportCmd() *cobra.Command {
	var (
		depth      int
		minSamples int
		synthetic  bool
	)

	cmd := &cobra.Command{
		Use:   "report <files...>",
		Short: "Print interval statistics and the divergence matrix",
		Long: `Load sample stores and print two tables: per-store inter-sample interval
statistics, and the pairwise divergence of the stores' stack distributions.

Inputs ending in .pprof are converted on the fly; they are fingerprinted at
the max depth of the first store file so that mixed inputs stay comparable,
or at --depth when no store file is given.

Examples:
  sampler-comparison report async.stacks jfr.stacks.gz
  sampler-comparison report baseline.stacks capture.pprof`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			depth = fallbackInt(cmd.Flags(), "depth", depth, cfg.Sampling.MaxDepth)
			minSamples = fallbackInt(cmd.Flags(), "min-samples", minSamples, cfg.Analysis.MinSamplesPerThread)

			opts := capture.Options{SyntheticTimestamps: synthetic}
			stores, err := loadStores(args, depth, cmd.Flags().Changed("depth"), opts, logger)
			if err != nil {
				return err
			}
			if len(stores) == 0 {
				return fmt.Errorf("no samples in %d input file(s)", len(args))
			}

			out := cmd.OutOrStdout()
			if err := report.IntervalTable(out, stores, minSamples); err != nil {
				return err
			}
			fmt.Fprintln(out)
			return report.DivergenceMatrix(out, stores)
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 100, "Max stack depth for converting profiles (default: depth of the first store file)")
	cmd.Flags().IntVar(&minSamples, "min-samples", analysis.DefaultMinSamplesPerThread, "Per-thread sample floor for interval statistics")
	cmd.Flags().BoolVar(&synthetic, "synthetic-timestamps", false, "Fabricate profile timestamps from the sampling period (poisons interval statistics)")

	return cmd
}
