package main

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/backstop/pkg/backup"
	"mercator-hq/backstop/pkg/cli"
)

var backupsFlags struct {
	partition int
	status    string
	format    string
}

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Inspect stored backups",
}

var backupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the backups of each partition",
	Long: `List the backups recorded in the store, ordered by partition, checkpoint
and node.

Examples:
  backstop backups list
  backstop backups list --partition 1 --status completed
  backstop backups list --format csv > backups.csv`,
	RunE: runBackupsList,
}

func init() {
	rootCmd.AddCommand(backupsCmd)
	backupsCmd.AddCommand(backupsListCmd)

	backupsListCmd.Flags().IntVar(&backupsFlags.partition, "partition", 0, "only list this partition (0 lists every partition)")
	backupsListCmd.Flags().StringVar(&backupsFlags.status, "status", "", "only list backups in this state: in_progress, completed, failed")
	backupsListCmd.Flags().StringVar(&backupsFlags.format, "format", "text", "output format: text, json, csv")
}

type backupList struct {
	Backups []backup.Status `json:"backups"`

	gen backup.CheckpointIDGenerator
	now time.Time
}

func (l backupList) Table() cli.Table {
	table := cli.Table{
		Headers: []string{"PARTITION", "NODE", "CHECKPOINT", "STATUS", "POSITION", "TAKEN", "REASON"},
	}
	for _, s := range l.Backups {
		position := "-"
		if s.Descriptor != nil {
			position = strconv.FormatInt(s.Descriptor.CheckpointPosition, 10)
		}
		reason := "-"
		if s.FailureReason != "" {
			reason = s.FailureReason
		}
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(s.ID.PartitionID),
			strconv.Itoa(s.ID.NodeID),
			strconv.FormatInt(s.ID.CheckpointID, 10),
			s.Code.String(),
			position,
			cli.FormatAge(s.Timestamp(l.gen), l.now),
			reason,
		})
	}
	return table
}

func compareBackups(a, b backup.Status) int {
	return cmp.Or(
		cmp.Compare(a.ID.PartitionID, b.ID.PartitionID),
		cmp.Compare(a.ID.CheckpointID, b.ID.CheckpointID),
		cmp.Compare(a.ID.NodeID, b.ID.NodeID),
	)
}

func runBackupsList(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(backupsFlags.format)
	if err != nil {
		return err
	}
	var code *backup.StatusCode
	if backupsFlags.status != "" {
		parsed, err := backup.ParseStatusCode(backupsFlags.status)
		if err != nil {
			return err
		}
		code = &parsed
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := newLogger(cfg); err != nil {
		return err
	}
	partitions, err := partitionsToList(cfg, backupsFlags.partition)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("backups list", err)
	}
	defer st.Close()

	list := backupList{
		Backups: []backup.Status{},
		gen:     idGenerator(cfg),
		now:     time.Now(),
	}
	progress := cli.NewProgressReporter(cmd.ErrOrStderr(), "partitions")
	progress.Start(int64(len(partitions)))
	for _, partition := range partitions {
		statuses, err := st.List(ctx, backup.ForPartition(partition, backup.AnyCheckpoint()))
		if err != nil {
			progress.Error(err)
			return cli.NewCommandError("backups list", err)
		}
		progress.Increment()
		for _, s := range statuses {
			if code == nil || s.Code == *code {
				list.Backups = append(list.Backups, s)
			}
		}
	}
	progress.Finish()
	slices.SortFunc(list.Backups, compareBackups)

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), list)
}
