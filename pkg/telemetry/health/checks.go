package health

import (
	"context"
	"fmt"

	"mercator-hq/backstop/pkg/backup"
	"mercator-hq/backstop/pkg/cluster"
)

// StoreCheck verifies the backup store is reachable. Stores that implement
// backup.HealthChecker are pinged; others are asked for the range markers of
// the first partition.
func StoreCheck(st backup.Store) CheckFunc {
	return func(ctx context.Context) error {
		if hc, ok := st.(backup.HealthChecker); ok {
			return hc.Ping(ctx)
		}
		_, err := st.RangeMarkers(ctx, 1)
		return err
	}
}

// PositionsCheck verifies the position source knows the exported position
// of every partition in 1..partitionCount. Restore planning fails without
// them.
func PositionsCheck(source cluster.PositionSource, partitionCount int) CheckFunc {
	return func(ctx context.Context) error {
		positions, err := cluster.CollectPositions(ctx, source, partitionCount)
		if err != nil {
			return err
		}
		var missing []int
		for partition := 1; partition <= partitionCount; partition++ {
			if _, ok := positions[partition]; !ok {
				missing = append(missing, partition)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("no exported position for partitions %v", missing)
		}
		return nil
	}
}
