package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parttimenerd/sampler-comparison/internal/archive"
	"github.com/parttimenerd/sampler-comparison/internal/capture"
	xerrors "github.com/parttimenerd/sampler-comparison/internal/errors"
)

// newArchiveCmd creates the archive command.
func newArchiveCmd() *cobra.Command {
	var (
		dbPath string
		depth  int
	)

	cmd := &cobra.Command{
		Use:   "archive <files...>",
		Short: "Write sample stores into a DuckDB database",
		Long: `Store the input sample stores in a DuckDB database for SQL analysis.

Each store lands as one row in the stores table and one row per sample in
the samples table; re-archiving a store of the same name replaces it.

Example:
  sampler-comparison archive async.stacks jfr.stacks --db samples.duckdb
  duckdb samples.duckdb "SELECT thread_name, count(*) FROM samples GROUP BY 1"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			dbPath = fallbackString(cmd.Flags(), "db", dbPath, cfg.Archive.Path)
			depth = fallbackInt(cmd.Flags(), "depth", depth, cfg.Sampling.MaxDepth)

			stores, err := loadStores(args, depth, cmd.Flags().Changed("depth"), capture.Options{}, logger)
			if err != nil {
				return err
			}
			if len(stores) == 0 {
				return fmt.Errorf("no samples in %d input file(s)", len(args))
			}

			db, err := archive.Open(dbPath, logger)
			if err != nil {
				return err
			}
			defer xerrors.DeferClose(logger, db, "failed to close archive database")

			ctx := cmd.Context()
			for _, s := range stores {
				if err := db.Write(ctx, s); err != nil {
					return err
				}
				cmd.Printf("archived %q: %d samples\n", s.Name(), s.TotalSampleCount())
			}

			infos, err := db.ListStores(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("%s now holds %d store(s)\n", dbPath, len(infos))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "samples.duckdb", "Archive database file")
	cmd.Flags().IntVar(&depth, "depth", 100, "Max stack depth for converting profiles")

	return cmd
}
