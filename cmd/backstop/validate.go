package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration file and environment overrides and report every
invalid field. Nothing is opened or changed.

Examples:
  backstop validate --config backstop.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✓ Configuration valid")
	fmt.Fprintf(out, "  Store:      %s\n", cfg.Store.Backend)
	fmt.Fprintf(out, "  Partitions: %d\n", cfg.Cluster.PartitionCount)
	if cfg.Retention.IsEnabled() {
		fmt.Fprintf(out, "  Retention:  %s, schedule %q\n", cfg.Retention.Window, cfg.Retention.Schedule)
	} else {
		fmt.Fprintln(out, "  Retention:  disabled")
	}
	return nil
}
