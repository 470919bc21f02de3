package retention

import (
	"cmp"
	"slices"
	"time"

	"mercator-hq/backstop/pkg/backup"
)

// PartitionPlan holds the retention decisions for one partition.
type PartitionPlan struct {
	Partition int

	// Latest is the newest completed backup, which is never deleted.
	// Nil when the partition has no completed backup; nothing is deleted then.
	Latest *backup.Status

	// Cutoff is the point in time before which backups are deleted.
	Cutoff time.Time

	// Delete lists the backups to delete, newest first.
	Delete []backup.Status

	// Retain lists the backups that survive this round, newest first.
	Retain []backup.Status

	// NewStart is the checkpoint id of the oldest retained completed backup.
	// Zero when Latest is nil.
	NewStart int64

	// StoreMarker is the Start marker written before old markers are removed.
	StoreMarker *backup.RangeMarker

	// DeleteMarkers lists the markers that precede NewStart, ascending.
	DeleteMarkers []backup.RangeMarker
}

// Empty reports whether the plan changes nothing.
func (p *PartitionPlan) Empty() bool {
	return len(p.Delete) == 0 && p.StoreMarker == nil && len(p.DeleteMarkers) == 0
}

// planPartition decides which backups and range markers of a partition to
// remove. The window is anchored at the newest completed backup rather than
// at now, so a cluster that stopped taking backups keeps its last window.
func planPartition(partition int, statuses []backup.Status, markers []backup.RangeMarker, now time.Time, window time.Duration, gen backup.CheckpointIDGenerator) PartitionPlan {
	plan := PartitionPlan{Partition: partition}

	ordered := slices.Clone(statuses)
	slices.SortStableFunc(ordered, func(a, b backup.Status) int {
		return cmp.Or(
			b.Timestamp(gen).Compare(a.Timestamp(gen)),
			cmp.Compare(b.ID.CheckpointID, a.ID.CheckpointID),
		)
	})

	latestIdx := slices.IndexFunc(ordered, backup.Status.IsCompleted)
	if latestIdx < 0 {
		plan.Retain = ordered
		return plan
	}
	latest := ordered[latestIdx]
	plan.Latest = &latest

	anchor := latest.Timestamp(gen)
	if now.Before(anchor) {
		anchor = now
	}
	plan.Cutoff = anchor.Add(-window)

	for _, status := range ordered {
		if status.ID.CheckpointID != latest.ID.CheckpointID && status.Timestamp(gen).Before(plan.Cutoff) {
			plan.Delete = append(plan.Delete, status)
			continue
		}
		plan.Retain = append(plan.Retain, status)
		if status.IsCompleted() {
			plan.NewStart = status.ID.CheckpointID
		}
	}

	sorted := slices.Clone(markers)
	slices.SortFunc(sorted, backup.CompareMarkers)

	hasStart := false
	for _, marker := range sorted {
		if marker.CheckpointID < plan.NewStart {
			plan.DeleteMarkers = append(plan.DeleteMarkers, marker)
		}
		if marker == backup.Start(plan.NewStart) {
			hasStart = true
		}
	}

	if len(plan.DeleteMarkers) > 0 && !hasStart {
		marker := backup.Start(plan.NewStart)
		plan.StoreMarker = &marker
	}

	return plan
}
