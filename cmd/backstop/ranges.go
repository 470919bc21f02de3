package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/backstop/pkg/backup"
	"mercator-hq/backstop/pkg/cli"
)

var rangesFlags struct {
	partition int
	format    string
}

var rangesCmd = &cobra.Command{
	Use:   "ranges",
	Short: "Inspect backup ranges",
}

var rangesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the backup ranges of each partition",
	Long: `List the backup ranges rebuilt from the range markers of each partition.

A complete range has no deleted checkpoint inside it and can serve restores;
an incomplete range lists the checkpoints deleted from it.

Examples:
  backstop ranges list
  backstop ranges list --partition 2 --format json`,
	RunE: runRangesList,
}

func init() {
	rootCmd.AddCommand(rangesCmd)
	rangesCmd.AddCommand(rangesListCmd)

	rangesListCmd.Flags().IntVar(&rangesFlags.partition, "partition", 0, "only list this partition (0 lists every partition)")
	rangesListCmd.Flags().StringVar(&rangesFlags.format, "format", "text", "output format: text, json, csv")
}

// rangeRow is one backup range of a partition.
type rangeRow struct {
	Partition int     `json:"partition"`
	State     string  `json:"state"`
	First     int64   `json:"first_checkpoint_id"`
	Last      int64   `json:"last_checkpoint_id"`
	Deleted   []int64 `json:"deleted_checkpoint_ids,omitempty"`
	From      string  `json:"from"`
	To        string  `json:"to"`
}

type rangeList []rangeRow

func (l rangeList) Table() cli.Table {
	table := cli.Table{
		Headers: []string{"PARTITION", "STATE", "FIRST", "LAST", "DELETED", "FROM", "TO"},
	}
	for _, r := range l {
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(r.Partition),
			r.State,
			strconv.FormatInt(r.First, 10),
			strconv.FormatInt(r.Last, 10),
			cli.FormatCount(int64(len(r.Deleted))),
			r.From,
			r.To,
		})
	}
	return table
}

func runRangesList(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(rangesFlags.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := newLogger(cfg); err != nil {
		return err
	}
	partitions, err := partitionsToList(cfg, rangesFlags.partition)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("ranges list", err)
	}
	defer st.Close()

	gen := idGenerator(cfg)
	rows := rangeList{}
	progress := cli.NewProgressReporter(cmd.ErrOrStderr(), "partitions")
	progress.Start(int64(len(partitions)))
	for _, partition := range partitions {
		markers, err := st.RangeMarkers(ctx, partition)
		if err != nil {
			progress.Error(err)
			return cli.NewCommandError("ranges list", err)
		}
		for _, rng := range backup.RangesFromMarkers(markers) {
			row := rangeRow{
				Partition: partition,
				State:     "complete",
				First:     rng.FirstCheckpointID(),
				Last:      rng.LastCheckpointID(),
				From:      "-",
				To:        "-",
			}
			if incomplete, ok := rng.(backup.Incomplete); ok {
				row.State = "incomplete"
				row.Deleted = incomplete.Deleted
			}
			if span, err := rng.TimeInterval(gen); err == nil {
				row.From = cli.FormatTime(span.Start())
				row.To = cli.FormatTime(span.End())
			}
			rows = append(rows, row)
		}
		progress.Increment()
	}
	progress.Finish()

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), rows)
}
