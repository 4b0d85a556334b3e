package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parttimenerd/sampler-comparison/internal/capture"
	"github.com/parttimenerd/sampler-comparison/internal/report"
)

// newInspectCmd creates the inspect command.
func newInspectCmd() *cobra.Command {
	var (
		depth     int
		synthetic bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <files...>",
		Short: "Show what each store recorded, per thread",
		Long: `Print one row per thread of each input store: sample count and the time
span the samples cover. Useful to check a capture before reporting on it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			depth = fallbackInt(cmd.Flags(), "depth", depth, cfg.Sampling.MaxDepth)

			opts := capture.Options{SyntheticTimestamps: synthetic}
			stores, err := loadStores(args, depth, cmd.Flags().Changed("depth"), opts, logger)
			if err != nil {
				return err
			}
			if len(stores) == 0 {
				return fmt.Errorf("no samples in %d input file(s)", len(args))
			}
			return report.InspectTable(cmd.OutOrStdout(), stores)
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 100, "Max stack depth for converting profiles (default: depth of the first store file)")
	cmd.Flags().BoolVar(&synthetic, "synthetic-timestamps", false, "Fabricate profile timestamps from the sampling period")

	return cmd
}
