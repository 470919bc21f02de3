// Package restore resolves a restore plan: for every partition of a cluster,
// the chain of backups that brings it to one global checkpoint inside a
// requested point-in-time window.
//
// # Resolution
//
// Each partition is resolved independently and in parallel:
//
//  1. Range markers are reconstructed into backup ranges and walked newest
//     first. The first complete range whose time span, taken from the
//     checkpoint timestamps of its endpoint backups, contains the window is
//     selected. Open window bounds take the bounds of the range.
//  2. The completed backups of the range are deduplicated across nodes and
//     reduced to the smallest run whose timestamps cover the window.
//  3. The safe start is the newest backup of that run taken at or before the
//     position the exporter has acknowledged. Backups before it are dropped.
//
// The global checkpoint is the highest checkpoint id present in every chain.
// Every chain must then start at or before its safe start, end exactly on the
// global checkpoint at or past the exporter position, and have no gaps in
// its log positions. All violations are reported in one ConsistencyError.
//
// # Basic Usage
//
//	resolver, err := restore.NewResolver(store, nil)
//	if err != nil {
//	    return err
//	}
//
//	plan, err := resolver.Resolve(ctx, restore.Between(from, to), 3, map[int]int64{
//	    1: 2500, 2: 2500, 3: 2400,
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(plan.GlobalCheckpointID, plan.BackupIDs)
//
// # Metrics
//
//   - backstop_restore_resolutions_total{outcome}
//   - backstop_restore_resolution_duration_seconds
package restore
