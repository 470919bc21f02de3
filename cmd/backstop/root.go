package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/backstop/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "backstop",
	Short: "Backstop - backup retention and restore planning for partitioned logs",
	Long: `Backstop manages the backups of a partitioned, log-structured cluster.

It keeps one backup range per partition trimmed to the retention window and
answers which backups restore every partition to one consistent checkpoint:
  - Scheduled retention that moves range markers along with deleted backups
  - Restore plans for a point-in-time window across all partitions
  - SQLite, S3 and in-memory backup stores

Configuration is read from --config and BACKSTOP_* environment variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults and environment only when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}
