// Package cli implements the sampler-comparison command line: recording this
// process with the in-process sampler, converting external pprof captures,
// and reporting interval statistics and divergence across sample stores.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/parttimenerd/sampler-comparison/internal/config"
	"github.com/parttimenerd/sampler-comparison/pkg/version"
)

// Persistent flags shared by every subcommand.
var (
	configPath string
	logLevel   string
	logPretty  bool
)

var rootCmd = &cobra.Command{
	Use:   "sampler-comparison",
	Short: "Compare sampling profilers by stack fingerprint statistics",
	Long: `Record, convert and compare sampling profiler output.

Profilers disagree: about when they manage to take a sample and about which
stacks they see. This tool makes that measurable. Each capture becomes a
store of per-thread, timestamped stack fingerprints; reports then show the
inter-sample interval statistics of each store and the pairwise divergence
of their stack distributions.

Sample stores travel as .stacks files (optionally .stacks.gz); external
profiles come in as .pprof files carrying per-sample timestamp labels.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file (default: ~/"+config.ConfigFileName+" if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "pretty", true,
		"Human-readable log output")

	rootCmd.AddCommand(newRecordCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newConvertCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newArchiveCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("sampler-comparison version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
