// Package interval provides a generic bounded range type and the set
// operations backup retention and restore planning are built on.
//
// # Bounds
//
// An Interval has a start and an end bound, each inclusive or exclusive:
//
//	iv, _ := interval.Closed[int64](100, 300)     // [100, 300]
//	half, _ := interval.ClosedOpen[int64](1, 10)  // [1, 10)
//	p := interval.Point[int64](42)                // [42, 42]
//
// Construction fails with ErrInvalidInterval when start > end, or when the
// bounds are equal and not both inclusive.
//
// Types that are not cmp.Ordered use the Func constructors with an explicit
// comparator. Time intervals use CompareTime:
//
//	window, _ := interval.ClosedTime(from, to)
//
// # Operations
//
//   - Contains / ContainsInterval: boundary-aware containment
//   - IsBefore / IsAfter / OverlapsWith: ordering predicates
//   - Intersection: the largest interval contained by all inputs
//   - Map: convert bounds to another type (checkpoint ids to timestamps)
//   - SmallestCover: the minimal subset of sorted points spanning an interval
//
// SmallestCover is what restore planning uses to pick the backups needed for a
// time window:
//
//	backups, err := interval.SmallestCover(window, sorted, func(s backup.Status) time.Time {
//	    return s.Descriptor.CheckpointTimestamp
//	})
package interval
