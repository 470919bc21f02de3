// Package retention deletes backups that fell out of a rolling time window
// and keeps the range markers of each partition in step with what is left.
//
// # Retention Rules
//
// Each round handles every partition of the cluster topology independently:
//
//   - The window is anchored at the newest completed backup, not at the
//     current time: cutoff = min(now, newest completed) - Window.
//   - Backups older than the cutoff are deleted, whether completed or failed.
//   - The newest completed backup is never deleted, so a partition always
//     keeps one restorable backup.
//   - A partition without completed backups is left untouched.
//   - The oldest retained completed backup becomes the new start of the
//     partition's range: a Start marker is stored at its checkpoint id and
//     every marker before it is removed. The Start marker is stored first.
//
// A failure while listing or changing one partition is logged and recorded
// in the round's Report; other partitions are unaffected and the partition
// is retried on the next round.
//
// # Basic Usage
//
//	pruner, err := retention.NewPruner(store, topology, &retention.Config{
//	    Window:   24 * time.Hour,
//	    Schedule: "@every 5m",
//	})
//	if err != nil {
//	    return err
//	}
//
//	if err := pruner.Start(ctx); err != nil {
//	    return err
//	}
//	defer pruner.Stop()
//
// Prune runs a single round on demand and Plan computes a round without
// changing the store.
//
// # Metrics
//
// Start registers the following gauges and Stop unregisters them:
//
//   - backstop_retention_backups_deleted_round{partition}
//   - backstop_retention_ranges_deleted_round{partition}
//   - backstop_retention_earliest_backup_id{partition}
//   - backstop_retention_last_execution_timestamp_seconds
//   - backstop_retention_next_execution_timestamp_seconds
package retention
