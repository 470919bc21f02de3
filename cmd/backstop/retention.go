package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"mercator-hq/backstop/pkg/backup/retention"
	"mercator-hq/backstop/pkg/cli"
	"mercator-hq/backstop/pkg/cluster"
)

var retentionFlags struct {
	dryRun bool
	window time.Duration
	format string
}

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Manage backup retention",
}

var retentionPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Run one retention round",
	Long: `Run one retention round over every partition.

Backups older than the retention window, measured back from the newest
completed backup of each partition, are deleted and the range markers are
moved past them. The newest completed backup is always kept.

Examples:
  # Show what would be deleted
  backstop retention prune --dry-run

  # Prune and print the report as JSON
  backstop retention prune --format json

  # Keep only the last day for this round
  backstop retention prune --window 24h`,
	RunE: runRetentionPrune,
}

func init() {
	rootCmd.AddCommand(retentionCmd)
	retentionCmd.AddCommand(retentionPruneCmd)

	retentionPruneCmd.Flags().BoolVar(&retentionFlags.dryRun, "dry-run", false, "compute decisions without changing the store")
	retentionPruneCmd.Flags().DurationVar(&retentionFlags.window, "window", 0, "override retention.window for this round")
	retentionPruneCmd.Flags().StringVar(&retentionFlags.format, "format", "text", "output format: text, json, csv")
}

func runRetentionPrune(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(retentionFlags.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("retention prune", err)
	}
	defer st.Close()

	topology, err := cluster.NewStaticTopology(cfg.Cluster.PartitionCount)
	if err != nil {
		return cli.NewConfigError("cluster.partition_count", err.Error())
	}

	rcfg := retentionConfig(&cfg.Retention)
	rcfg.Schedule = ""
	if retentionFlags.window != 0 {
		rcfg.Window = retentionFlags.window
	}
	pruner, err := retention.NewPruner(st, topology, rcfg,
		retention.WithLogger(logger),
		retention.WithIDGenerator(idGenerator(cfg)),
		retention.WithRegisterer(prometheus.NewRegistry()),
	)
	if err != nil {
		return cli.NewConfigError("retention", err.Error())
	}

	var report *retention.Report
	if retentionFlags.dryRun {
		report, err = pruner.Plan(ctx)
	} else {
		report, err = pruner.Prune(ctx)
	}
	if err != nil {
		return cli.NewCommandError("retention prune", err)
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), pruneReport{report}); err != nil {
		return err
	}

	if failed := report.Failed(); len(failed) > 0 {
		return cli.NewCommandError("retention prune",
			fmt.Errorf("%d of %d partitions failed", len(failed), len(report.Partitions)))
	}
	return nil
}

// pruneReport renders a retention report.
type pruneReport struct {
	*retention.Report
}

func (r pruneReport) Table() cli.Table {
	table := cli.Table{
		Headers: []string{"PARTITION", "CUTOFF", "BACKUPS", "MARKERS", "EARLIEST", "ERROR"},
	}
	for _, p := range r.Partitions {
		earliest := "-"
		if p.EarliestBackupID != nil {
			earliest = strconv.FormatInt(*p.EarliestBackupID, 10)
		}
		errText := "-"
		if p.Error != "" {
			errText = p.Error
		}
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(p.Partition),
			cli.FormatTime(p.Cutoff),
			cli.FormatCount(int64(len(p.DeletedBackups))),
			cli.FormatCount(int64(len(p.DeletedMarkers))),
			earliest,
			errText,
		})
	}
	return table
}
