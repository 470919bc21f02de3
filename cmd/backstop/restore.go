package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/backstop/pkg/cli"
	"mercator-hq/backstop/pkg/cluster"
	"mercator-hq/backstop/pkg/config"
	"mercator-hq/backstop/pkg/restore"
)

var restoreFlags struct {
	from          string
	to            string
	positions     []string
	positionsFile string
	format        string
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Plan restores",
}

var restorePlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Select the backups that restore every partition to one checkpoint",
	Long: `Select, for every partition, the chain of backups that covers the requested
window, and the highest checkpoint every chain contains.

The window bounds are RFC 3339 timestamps; an omitted bound is open and takes
the bound of the newest complete backup range. Exported positions come from
--position flags or, when none are given, from --positions-file or
cluster.positions_file.

Exits with status 3 when the backups cannot satisfy the request.

Examples:
  # Restore to the newest consistent checkpoint
  backstop restore plan --position 1=2500 --position 2=3100

  # Restore to a point in time
  backstop restore plan --to 2026-10-18T12:00:00Z --format json`,
	RunE: runRestorePlan,
}

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.AddCommand(restorePlanCmd)

	restorePlanCmd.Flags().StringVar(&restoreFlags.from, "from", "", "start of the window (RFC 3339)")
	restorePlanCmd.Flags().StringVar(&restoreFlags.to, "to", "", "end of the window (RFC 3339)")
	restorePlanCmd.Flags().StringArrayVar(&restoreFlags.positions, "position", nil, "exported position as partition=position (repeatable)")
	restorePlanCmd.Flags().StringVar(&restoreFlags.positionsFile, "positions-file", "", "override cluster.positions_file")
	restorePlanCmd.Flags().StringVar(&restoreFlags.format, "format", "text", "output format: text, json, csv")
}

func parseWindow(from, to string) (restore.Window, error) {
	var window restore.Window
	if from != "" {
		t, err := time.Parse(time.RFC3339Nano, from)
		if err != nil {
			return window, fmt.Errorf("invalid --from: %w", err)
		}
		window.From = &t
	}
	if to != "" {
		t, err := time.Parse(time.RFC3339Nano, to)
		if err != nil {
			return window, fmt.Errorf("invalid --to: %w", err)
		}
		window.To = &t
	}
	return window, window.Validate()
}

// positionSource picks the exported positions given on the command line, or
// the positions file of the configuration.
func positionSource(cfg *config.Config, flags []string) (cluster.PositionSource, error) {
	if len(flags) > 0 {
		return parsePositions(flags)
	}
	if cfg.Cluster.PositionsFile == "" {
		return nil, cli.NewConfigError("cluster.positions_file", "no --position flags given and no positions file configured")
	}
	return cluster.NewFilePositions(cfg.Cluster.PositionsFile)
}

func runRestorePlan(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(restoreFlags.format)
	if err != nil {
		return err
	}
	window, err := parseWindow(restoreFlags.from, restoreFlags.to)
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

	if restoreFlags.positionsFile != "" {
		cfg.Cluster.PositionsFile = restoreFlags.positionsFile
	}
	source, err := positionSource(cfg, restoreFlags.positions)
	if err != nil {
		return err
	}
	positions, err := cluster.CollectPositions(ctx, source, cfg.Cluster.PartitionCount)
	if err != nil {
		return cli.NewCommandError("restore plan", err)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("restore plan", err)
	}
	defer st.Close()

	resolver, err := restore.NewResolver(st, restoreConfig(&cfg.Restore),
		restore.WithLogger(logger),
		restore.WithIDGenerator(idGenerator(cfg)),
	)
	if err != nil {
		return cli.NewConfigError("restore", err.Error())
	}

	plan, err := resolver.Resolve(ctx, window, cfg.Cluster.PartitionCount, positions)
	if err != nil {
		cmdErr := cli.NewCommandError("restore plan", err)
		if restore.IsPlanError(err) {
			cmdErr.Code = cli.ExitNoPlan
		}
		return cmdErr
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatText {
		fmt.Fprintf(out, "Plan %s\n", plan.PlanID)
		fmt.Fprintf(out, "Window: %s\n", window)
		fmt.Fprintf(out, "Global checkpoint: %d\n\n", plan.GlobalCheckpointID)
	}
	return cli.NewFormatter(format).FormatTo(out, restorePlan{plan})
}

// restorePlan renders a restore plan.
type restorePlan struct {
	*restore.GlobalRestoreInfo
}

func (p restorePlan) Table() cli.Table {
	table := cli.Table{
		Headers: []string{"PARTITION", "SAFE START", "EXPORTED POSITION", "BACKUPS", "CHECKPOINTS"},
	}
	for _, partition := range p.PartitionIDs() {
		var info restore.PartitionRestoreInfo
		for _, candidate := range p.Partitions {
			if candidate.Partition == partition {
				info = candidate
			}
		}
		ids := make([]string, 0, len(p.BackupIDs[partition]))
		for _, id := range p.BackupIDs[partition] {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(partition),
			strconv.FormatInt(info.SafeStart, 10),
			strconv.FormatInt(info.ExporterPosition, 10),
			strconv.Itoa(len(info.Backups)),
			strings.Join(ids, " "),
		})
	}
	return table
}
