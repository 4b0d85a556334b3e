package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/parttimenerd/sampler-comparison/internal/capture"
	"github.com/parttimenerd/sampler-comparison/internal/stackstore"
)

// newConvertCmd creates the convert command.
func newConvertCmd() *cobra.Command {
	var (
		outDir    string
		name      string
		depth     int
		synthetic bool
	)

	cmd := &cobra.Command{
		Use:   "convert <profile.pprof>",
		Short: "Convert a pprof profile into store files",
		Long: `Convert a pprof profile into one store file per derived store.

Profiles with stackless failure samples yield a second "<name> with errors"
store next to the main one. Output files are named after the store, with
unsafe characters replaced:

  sampler-comparison convert capture.pprof --out-dir stores/
  sampler-comparison convert capture.pprof --name async-profiler --depth 64`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			depth = fallbackInt(cmd.Flags(), "depth", depth, cfg.Sampling.MaxDepth)

			opts := capture.Options{Name: name, SyntheticTimestamps: synthetic}
			stores, err := capture.ReadProfileFile(args[0], depth, opts, logger)
			if err != nil {
				return err
			}
			if len(stores) == 0 {
				return fmt.Errorf("profile %s contains no usable samples", args[0])
			}

			if err := os.MkdirAll(outDir, 0o750); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
			for _, s := range stores {
				path := filepath.Join(outDir, sanitizeStoreName(s.Name())+storeSuffix)
				if err := stackstore.SaveFile(s, path); err != nil {
					return err
				}
				logger.Info().
					Str("store", s.Name()).
					Int("samples", s.TotalSampleCount()).
					Str("file", path).
					Msg("Wrote store")
				cmd.Println(path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", ".", "Directory for the generated store files")
	cmd.Flags().StringVar(&name, "name", "", "Store name (default: the profile's sample type)")
	cmd.Flags().IntVar(&depth, "depth", 100, "Max stack depth per fingerprint")
	cmd.Flags().BoolVar(&synthetic, "synthetic-timestamps", false, "Fabricate timestamps from the sampling period (poisons interval statistics)")

	return cmd
}
