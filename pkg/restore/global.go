package restore

import (
	"slices"
)

// GlobalRestoreInfo is a restore plan: the checkpoint every partition is
// restored to and the backups each partition restores from.
type GlobalRestoreInfo struct {
	PlanID             string                 `json:"plan_id"`
	GlobalCheckpointID int64                  `json:"global_checkpoint_id"`
	Partitions         []PartitionRestoreInfo `json:"partitions"`

	// BackupIDs maps each partition to the sorted, distinct checkpoint ids
	// of its chain.
	BackupIDs map[int][]int64 `json:"backup_ids"`
}

// ComputeGlobalCheckpointID returns the highest checkpoint id present in the
// chain of every partition.
func ComputeGlobalCheckpointID(partitions []PartitionRestoreInfo) (int64, error) {
	if len(partitions) == 0 {
		return 0, ErrNoCommonCheckpoint
	}

	common := make(map[int64]struct{})
	for _, id := range partitions[0].CheckpointIDs() {
		common[id] = struct{}{}
	}
	for _, p := range partitions[1:] {
		present := make(map[int64]struct{}, len(p.Backups))
		for _, id := range p.CheckpointIDs() {
			present[id] = struct{}{}
		}
		for id := range common {
			if _, ok := present[id]; !ok {
				delete(common, id)
			}
		}
	}

	if len(common) == 0 {
		return 0, ErrNoCommonCheckpoint
	}

	var global int64
	first := true
	for id := range common {
		if first || id > global {
			global = id
			first = false
		}
	}
	return global, nil
}

// ValidatePartitions checks every partition against the global checkpoint.
// All inconsistent partitions are reported in a single ConsistencyError.
func ValidatePartitions(partitions []PartitionRestoreInfo, global int64) error {
	var failures []error
	for _, p := range partitions {
		if err := p.validate(global); err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) > 0 {
		return &ConsistencyError{GlobalCheckpointID: global, Failures: failures}
	}
	return nil
}

// BackupIDsByPartition returns the sorted, distinct checkpoint ids of each
// partition's chain.
func BackupIDsByPartition(partitions []PartitionRestoreInfo) map[int][]int64 {
	result := make(map[int][]int64, len(partitions))
	for _, p := range partitions {
		ids := p.CheckpointIDs()
		slices.Sort(ids)
		result[p.Partition] = slices.Compact(ids)
	}
	return result
}
