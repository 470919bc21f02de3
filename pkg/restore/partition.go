package restore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/backstop/pkg/backup"
	"mercator-hq/backstop/pkg/backup/interval"
	"mercator-hq/backstop/pkg/telemetry/logging"
	"mercator-hq/backstop/pkg/telemetry/tracing"
)

// PartitionRestoreInfo is the backup chain selected for one partition.
type PartitionRestoreInfo struct {
	Partition int `json:"partition"`

	// SafeStart is the newest checkpoint whose state was fully exported, so
	// restoring from it loses nothing the exporter has not seen.
	SafeStart int64 `json:"safe_start"`

	// Range is the backup range the chain was taken from.
	Range backup.Range `json:"-"`

	// Backups is the chain of completed backups from SafeStart onwards,
	// sorted by checkpoint id.
	Backups []backup.Status `json:"backups"`

	// ExporterPosition is the position the exporter has acknowledged.
	ExporterPosition int64 `json:"exporter_position"`
}

// CheckpointIDs returns the checkpoint ids of the chain.
func (p PartitionRestoreInfo) CheckpointIDs() []int64 {
	ids := make([]int64, len(p.Backups))
	for i, b := range p.Backups {
		ids[i] = b.ID.CheckpointID
	}
	return ids
}

// FindSafeStart returns the highest checkpoint id among completed backups
// with a descriptor whose checkpoint position does not exceed position.
func FindSafeStart(position int64, backups []backup.Status) (int64, bool) {
	var (
		safeStart int64
		found     bool
	)
	for _, b := range backups {
		if !b.IsCompleted() || b.Descriptor == nil || b.Descriptor.CheckpointPosition > position {
			continue
		}
		if !found || b.ID.CheckpointID > safeStart {
			safeStart = b.ID.CheckpointID
			found = true
		}
	}
	return safeStart, found
}

func (r *Resolver) resolvePartition(ctx context.Context, partition int, window Window, position int64) (PartitionRestoreInfo, error) {
	ctx = logging.WithPartition(ctx, partition)
	ctx, span := r.tracer.Start(ctx, "restore.partition", trace.WithAttributes(
		tracing.AttrPartition.Int(partition),
		tracing.AttrExporterPosition.Int64(position),
	))
	defer span.End()

	info, err := r.selectChain(ctx, partition, window, position)
	if err != nil {
		tracing.SetError(span, err)
		tracing.SetStatus(span, err)
		return PartitionRestoreInfo{}, err
	}

	span.SetAttributes(
		tracing.AttrSafeStart.Int64(info.SafeStart),
		tracing.AttrBackups.Int(len(info.Backups)),
	)
	tracing.SetStatus(span, nil)
	return info, nil
}

func (r *Resolver) selectChain(ctx context.Context, partition int, window Window, position int64) (PartitionRestoreInfo, error) {
	logger := logging.FromContext(ctx, r.logger)

	markers, err := r.store.RangeMarkers(ctx, partition)
	if err != nil {
		return PartitionRestoreInfo{}, fmt.Errorf("partition %d: failed to read range markers: %w", partition, err)
	}
	ranges := backup.RangesFromMarkers(markers)

	match, requested, err := r.findCoveringRange(ctx, logger, partition, window, ranges)
	if err != nil {
		return PartitionRestoreInfo{}, err
	}
	if match == nil {
		return PartitionRestoreInfo{}, &NoCoveringRangeError{
			Partition:     partition,
			Window:        window,
			Ranges:        ranges,
			TimeIntervals: r.timeIntervals(ranges),
		}
	}

	cover, err := r.coveringBackups(ctx, partition, match, requested)
	if err != nil {
		return PartitionRestoreInfo{}, err
	}

	safeStart, ok := FindSafeStart(position, cover)
	if !ok {
		return PartitionRestoreInfo{}, &NoSafeStartError{Partition: partition, ExporterPosition: position}
	}

	chain := slices.DeleteFunc(cover, func(s backup.Status) bool {
		return s.ID.CheckpointID < safeStart
	})

	logger.Debug("backup chain selected",
		"range", match.String(),
		"requested", requested.String(),
		"safe_start", safeStart,
		"backups", len(chain),
	)

	return PartitionRestoreInfo{
		Partition:        partition,
		SafeStart:        safeStart,
		Range:            match,
		Backups:          chain,
		ExporterPosition: position,
	}, nil
}

// findCoveringRange walks the ranges newest first and returns the first
// complete range whose time span contains the window, along with the window
// with its open bounds filled from that span. Ranges whose endpoints have no
// completed backup with a descriptor are skipped.
func (r *Resolver) findCoveringRange(ctx context.Context, logger *slog.Logger, partition int, window Window, ranges []backup.Range) (backup.Range, interval.Interval[time.Time], error) {
	for i := len(ranges) - 1; i >= 0; i-- {
		complete, ok := ranges[i].(backup.Complete)
		if !ok {
			continue
		}

		span, ok, err := r.rangeTimeSpan(ctx, logger, partition, complete)
		if err != nil {
			return nil, interval.Interval[time.Time]{}, err
		}
		if !ok {
			logger.Debug("skipping range without usable endpoint backups", "range", complete.String())
			continue
		}

		requested, err := window.Within(span)
		if err != nil {
			continue
		}
		if span.ContainsInterval(requested) {
			return complete, requested, nil
		}
	}
	return nil, interval.Interval[time.Time]{}, nil
}

// rangeTimeSpan maps the checkpoint interval of a range to the checkpoint
// timestamps of the backups at its endpoints. A range whose endpoint
// timestamps are out of order is reported and treated as unusable.
func (r *Resolver) rangeTimeSpan(ctx context.Context, logger *slog.Logger, partition int, rng backup.Complete) (interval.Interval[time.Time], bool, error) {
	timestamps := make(map[int64]time.Time, 2)
	for _, id := range []int64{rng.FirstCheckpointID(), rng.LastCheckpointID()} {
		if _, ok := timestamps[id]; ok {
			continue
		}
		status, err := r.endpointBackup(ctx, partition, id)
		if err != nil {
			return interval.Interval[time.Time]{}, false, err
		}
		if status == nil {
			return interval.Interval[time.Time]{}, false, nil
		}
		timestamps[id] = status.Descriptor.CheckpointTimestamp
	}

	span, err := interval.Map(rng.CheckpointInterval(), func(id int64) (time.Time, error) {
		return timestamps[id], nil
	}, interval.CompareTime)
	if err != nil {
		logger.Warn("range endpoint timestamps are out of order",
			"range", rng.String(),
			"first_timestamp", timestamps[rng.FirstCheckpointID()],
			"last_timestamp", timestamps[rng.LastCheckpointID()],
			"error", err,
		)
		return interval.Interval[time.Time]{}, false, nil
	}
	return span, true, nil
}

// endpointBackup returns a completed backup with a descriptor for the
// checkpoint, taken by any node, or nil when there is none.
func (r *Resolver) endpointBackup(ctx context.Context, partition int, checkpointID int64) (*backup.Status, error) {
	statuses, err := r.store.List(ctx, backup.ForPartition(partition, backup.ExactCheckpoint(checkpointID)))
	if err != nil {
		return nil, fmt.Errorf("partition %d: failed to list backups of checkpoint %d: %w", partition, checkpointID, err)
	}
	for _, s := range statuses {
		if s.IsCompleted() && s.Descriptor != nil {
			return &s, nil
		}
	}
	return nil, nil
}

// coveringBackups returns the smallest run of completed backups in the range
// whose checkpoint timestamps cover the requested window.
func (r *Resolver) coveringBackups(ctx context.Context, partition int, rng backup.Range, requested interval.Interval[time.Time]) ([]backup.Status, error) {
	statuses, err := r.store.List(ctx, backup.ForPartition(partition, backup.CheckpointsIn(rng.CheckpointInterval())))
	if err != nil {
		return nil, fmt.Errorf("partition %d: failed to list backups in range %s: %w", partition, rng, err)
	}

	completed := slices.DeleteFunc(statuses, func(s backup.Status) bool {
		return !s.IsCompleted() || s.Descriptor == nil
	})
	completed = backup.DedupeByCheckpoint(completed)

	cover, err := interval.SmallestCover(requested, completed, func(s backup.Status) time.Time {
		return s.Descriptor.CheckpointTimestamp
	})
	if err != nil {
		return nil, fmt.Errorf("partition %d: backups are not ordered by checkpoint timestamp: %w", partition, err)
	}
	return cover, nil
}

func (r *Resolver) timeIntervals(ranges []backup.Range) []interval.Interval[time.Time] {
	result := make([]interval.Interval[time.Time], 0, len(ranges))
	for _, rng := range ranges {
		iv, err := rng.TimeInterval(r.gen)
		if err != nil {
			continue
		}
		result = append(result, iv)
	}
	return result
}

// validate checks that the chain can restore the partition to the global
// checkpoint and returns the first violation found.
func (p PartitionRestoreInfo) validate(global int64) error {
	if p.SafeStart > global {
		return fmt.Errorf("partition %d: safe start checkpoint %d is beyond global checkpoint %d",
			p.Partition, p.SafeStart, global)
	}

	switch rng := p.Range.(type) {
	case backup.Incomplete:
		return fmt.Errorf("partition %d: backup range [%d, %d] has deletions: %v",
			p.Partition, rng.FirstCheckpointID(), rng.LastCheckpointID(), rng.Deleted)
	case backup.Complete:
		if err := p.validateCoverage(rng, global); err != nil {
			return err
		}
	default:
		return fmt.Errorf("partition %d: no backup range selected", p.Partition)
	}

	if err := p.validateLastBackup(global); err != nil {
		return err
	}
	return p.validateContinuity()
}

func (p PartitionRestoreInfo) validateCoverage(rng backup.Complete, global int64) error {
	if rng.FirstCheckpointID() > p.SafeStart || rng.LastCheckpointID() < global {
		return fmt.Errorf("partition %d: backup range [%d, %d] does not cover required range [%d, %d]",
			p.Partition, rng.FirstCheckpointID(), rng.LastCheckpointID(), p.SafeStart, global)
	}
	if len(p.Backups) == 0 {
		return fmt.Errorf("partition %d: no backups found", p.Partition)
	}
	if first := p.Backups[0].ID.CheckpointID; first > p.SafeStart {
		return fmt.Errorf("partition %d: first backup checkpoint %d is after safe start %d",
			p.Partition, first, p.SafeStart)
	}
	return nil
}

func (p PartitionRestoreInfo) validateLastBackup(global int64) error {
	last := p.Backups[len(p.Backups)-1]
	if last.ID.CheckpointID != global {
		return fmt.Errorf("partition %d: last backup checkpoint %d is not equal to global checkpoint %d",
			p.Partition, last.ID.CheckpointID, global)
	}
	if last.Descriptor == nil {
		return fmt.Errorf("partition %d: last backup checkpoint %d has no descriptor", p.Partition, global)
	}
	if last.Descriptor.CheckpointPosition < p.ExporterPosition {
		return fmt.Errorf("partition %d: last backup checkpoint position %d is less than exporter position %d. "+
			"Try restoring with a larger time range by increasing the `to` parameter",
			p.Partition, last.Descriptor.CheckpointPosition, p.ExporterPosition)
	}
	return nil
}

// validateContinuity checks that consecutive backups cover adjacent or
// overlapping log positions.
func (p PartitionRestoreInfo) validateContinuity() error {
	for i := 1; i < len(p.Backups); i++ {
		prev, curr := p.Backups[i-1], p.Backups[i]

		prevPositions, ok := prev.Descriptor.LogPositionInterval()
		if !ok {
			return fmt.Errorf("partition %d: backup %d has no log position interval",
				p.Partition, prev.ID.CheckpointID)
		}
		currPositions, ok := curr.Descriptor.LogPositionInterval()
		if !ok {
			return fmt.Errorf("partition %d: backup %d has no log position interval",
				p.Partition, curr.ID.CheckpointID)
		}

		adjacent, err := prevPositions.WithEnd(prevPositions.End() + 1)
		if err != nil {
			return fmt.Errorf("partition %d: backup %d: %w", p.Partition, prev.ID.CheckpointID, err)
		}
		if !currPositions.OverlapsWith(adjacent) {
			return &GapError{Partition: p.Partition, Previous: prev, Current: curr}
		}
	}
	return nil
}
