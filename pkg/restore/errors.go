package restore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"mercator-hq/backstop/pkg/backup"
	"mercator-hq/backstop/pkg/backup/interval"
)

// ErrNoCommonCheckpoint is returned when the backup chains of the partitions
// share no checkpoint id.
var ErrNoCommonCheckpoint = errors.New("no common checkpoint found across all partitions")

// MissingPositionError is returned when no exporter position was supplied for
// some partitions.
type MissingPositionError struct {
	Partitions []int
}

func (e *MissingPositionError) Error() string {
	return fmt.Sprintf("missing exporter position for partitions %v", e.Partitions)
}

// NoCoveringRangeError is returned when no complete backup range of a
// partition covers the requested window.
type NoCoveringRangeError struct {
	Partition     int
	Window        Window
	Ranges        []backup.Range
	TimeIntervals []interval.Interval[time.Time]
}

func (e *NoCoveringRangeError) Error() string {
	ranges := make([]string, len(e.Ranges))
	for i, r := range e.Ranges {
		ranges[i] = r.String()
	}
	times := make([]string, len(e.TimeIntervals))
	for i, iv := range e.TimeIntervals {
		times[i] = iv.String()
	}
	return fmt.Sprintf("no complete backup range found for partition %d in interval %s, ranges=[%s], timeInterval=[%s]",
		e.Partition, e.Window, strings.Join(ranges, ", "), strings.Join(times, ", "))
}

// NoSafeStartError is returned when no covering backup of a partition was
// taken at or before the position the exporter has acknowledged.
type NoSafeStartError struct {
	Partition        int
	ExporterPosition int64
}

func (e *NoSafeStartError) Error() string {
	return fmt.Sprintf("no safe start checkpoint found for partition %d with exported position %d",
		e.Partition, e.ExporterPosition)
}

// GapError reports two consecutive backups of a chain whose log positions
// leave entries uncovered.
type GapError struct {
	Partition int
	Previous  backup.Status
	Current   backup.Status
}

func (e *GapError) Error() string {
	return fmt.Sprintf("partition %d: has gap in log positions - checkpoint %d @ %s, checkpoint %d @ %s",
		e.Partition,
		e.Previous.ID.CheckpointID, logPositions(e.Previous),
		e.Current.ID.CheckpointID, logPositions(e.Current))
}

func logPositions(s backup.Status) string {
	iv, ok := s.Descriptor.LogPositionInterval()
	if !ok {
		return "unknown"
	}
	return iv.String()
}

// ConsistencyError is returned when the backup chains cannot be restored to
// the global checkpoint. It carries one failure per inconsistent partition.
type ConsistencyError struct {
	GlobalCheckpointID int64
	Failures           []error
}

func (e *ConsistencyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cannot restore to global checkpoint %d, failures:", e.GlobalCheckpointID)
	for _, failure := range e.Failures {
		b.WriteString("\n  - ")
		b.WriteString(failure.Error())
	}
	return b.String()
}

func (e *ConsistencyError) Unwrap() []error {
	return e.Failures
}
