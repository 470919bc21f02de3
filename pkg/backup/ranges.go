package backup

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"mercator-hq/backstop/pkg/backup/interval"
)

// Range is a contiguous span of checkpoints reconstructed from range markers.
// It is either Complete or Incomplete; the set of implementations is closed.
type Range interface {
	// FirstCheckpointID returns the first checkpoint of the range.
	FirstCheckpointID() int64

	// LastCheckpointID returns the last checkpoint of the range.
	LastCheckpointID() int64

	// CheckpointInterval returns the closed checkpoint interval of the range.
	CheckpointInterval() interval.Interval[int64]

	// Contains reports whether every checkpoint of sub can be trusted from
	// this range.
	Contains(sub interval.Interval[int64]) bool

	// TimeInterval maps the checkpoint interval to wall-clock time.
	TimeInterval(gen CheckpointIDGenerator) (interval.Interval[time.Time], error)

	String() string

	isRange()
}

// Complete is a range with no deleted checkpoints inside it.
type Complete struct {
	Checkpoints interval.Interval[int64]
}

// NewComplete creates the complete range [first, last].
func NewComplete(first, last int64) (Complete, error) {
	iv, err := interval.Closed(first, last)
	if err != nil {
		return Complete{}, err
	}
	return Complete{Checkpoints: iv}, nil
}

func (r Complete) FirstCheckpointID() int64                     { return r.Checkpoints.Start() }
func (r Complete) LastCheckpointID() int64                      { return r.Checkpoints.End() }
func (r Complete) CheckpointInterval() interval.Interval[int64] { return r.Checkpoints }

// Contains reports whether sub lies within the range.
func (r Complete) Contains(sub interval.Interval[int64]) bool {
	return r.Checkpoints.ContainsInterval(sub)
}

// TimeInterval maps the checkpoint interval to wall-clock time.
func (r Complete) TimeInterval(gen CheckpointIDGenerator) (interval.Interval[time.Time], error) {
	return timeInterval(r.Checkpoints, gen)
}

// String returns e.g. "complete[100, 300]".
func (r Complete) String() string {
	return "complete" + r.Checkpoints.String()
}

func (Complete) isRange() {}

// Incomplete is a range with one or more checkpoints deleted from inside it.
type Incomplete struct {
	Checkpoints interval.Interval[int64]
	Deleted     []int64 // Sorted, distinct, non-empty
}

// NewIncomplete creates an incomplete range. deleted must be non-empty,
// strictly ascending and contained in checkpoints.
func NewIncomplete(checkpoints interval.Interval[int64], deleted []int64) (Incomplete, error) {
	if len(deleted) == 0 {
		return Incomplete{}, errors.New("incomplete range requires at least one deleted checkpoint")
	}
	for i, id := range deleted {
		if i > 0 && id <= deleted[i-1] {
			return Incomplete{}, fmt.Errorf("deleted checkpoints must be strictly ascending, found %d after %d", id, deleted[i-1])
		}
		if !checkpoints.Contains(id) {
			return Incomplete{}, fmt.Errorf("deleted checkpoint %d is outside of range %s", id, checkpoints)
		}
	}
	return Incomplete{Checkpoints: checkpoints, Deleted: slices.Clone(deleted)}, nil
}

func (r Incomplete) FirstCheckpointID() int64                     { return r.Checkpoints.Start() }
func (r Incomplete) LastCheckpointID() int64                      { return r.Checkpoints.End() }
func (r Incomplete) CheckpointInterval() interval.Interval[int64] { return r.Checkpoints }

// Contains reports whether sub lies within the range and avoids every
// deleted checkpoint.
func (r Incomplete) Contains(sub interval.Interval[int64]) bool {
	if !r.Checkpoints.ContainsInterval(sub) {
		return false
	}
	for _, id := range r.Deleted {
		if sub.Contains(id) {
			return false
		}
	}
	return true
}

// TimeInterval maps the checkpoint interval to wall-clock time.
func (r Incomplete) TimeInterval(gen CheckpointIDGenerator) (interval.Interval[time.Time], error) {
	return timeInterval(r.Checkpoints, gen)
}

// String returns e.g. "incomplete[100, 300] deleted=[200]".
func (r Incomplete) String() string {
	ids := make([]string, len(r.Deleted))
	for i, id := range r.Deleted {
		ids[i] = fmt.Sprint(id)
	}
	return "incomplete" + r.Checkpoints.String() + " deleted=[" + strings.Join(ids, ", ") + "]"
}

func (Incomplete) isRange() {}

func timeInterval(iv interval.Interval[int64], gen CheckpointIDGenerator) (interval.Interval[time.Time], error) {
	return interval.Map(iv, func(id int64) (time.Time, error) {
		return gen.ToTimestamp(id), nil
	}, interval.CompareTime)
}

// RangesFromMarkers reconstructs the ranges of a partition from its marker
// log, in chronological order.
//
// Markers are replayed sorted by checkpoint id and kind. A Start opens a range
// and the next End closes it; Deletion markers between them make the range
// Incomplete. A Start that is never closed is the currently open range and
// ends at the highest checkpoint id seen after it. A Start that arrives while
// a range is open closes the open range the same way. End and Deletion
// markers outside of a range are ignored.
//
// Only markers are replayed, never backups: an open range with no Deletion
// after its Start is the single point [start, start] even when later backups
// exist, until an End marker is stored for it.
func RangesFromMarkers(markers []RangeMarker) []Range {
	sorted := slices.Clone(markers)
	slices.SortFunc(sorted, CompareMarkers)

	var (
		ranges  []Range
		open    bool
		start   int64
		last    int64
		deleted []int64
	)

	closeRange := func(end int64) {
		ranges = append(ranges, buildRange(start, end, deleted))
		open, deleted = false, nil
	}

	for _, m := range sorted {
		switch m.Kind {
		case MarkerStart:
			if open {
				closeRange(last)
			}
			open, start, last = true, m.CheckpointID, m.CheckpointID
		case MarkerDeletion:
			if !open {
				continue
			}
			if len(deleted) == 0 || deleted[len(deleted)-1] != m.CheckpointID {
				deleted = append(deleted, m.CheckpointID)
			}
			last = m.CheckpointID
		case MarkerEnd:
			if open {
				closeRange(m.CheckpointID)
			}
		}
	}
	if open {
		closeRange(last)
	}

	return ranges
}

// buildRange assumes start <= ids in deleted <= end, which the replay order
// guarantees.
func buildRange(start, end int64, deleted []int64) Range {
	iv := interval.Point(start)
	if end > start {
		iv, _ = interval.Closed(start, end)
	}
	if len(deleted) == 0 {
		return Complete{Checkpoints: iv}
	}
	return Incomplete{Checkpoints: iv, Deleted: deleted}
}
