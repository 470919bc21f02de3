package interval

import (
	"cmp"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInterval is wrapped by every construction failure.
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrEmptyIntersection is returned when Intersection is called without intervals.
	ErrEmptyIntersection = errors.New("cannot compute intersection of empty collection")

	// ErrUnsortedPoints is returned by SmallestCover when the points are not
	// strictly ascending by key.
	ErrUnsortedPoints = errors.New("points must be strictly sorted in ascending order with no duplicates")
)

// Bound comparison signs. At equal values an inclusive start bound sorts
// before an exclusive one and an inclusive end bound sorts after an exclusive one.
const (
	startInclusiveSign = -1
	endInclusiveSign   = 1
)

// InvalidIntervalError describes bounds that do not form a valid interval.
type InvalidIntervalError struct {
	Notation string
	Reason   string
}

// Error implements the error interface.
func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid interval %s: %s", e.Notation, e.Reason)
}

// Unwrap returns ErrInvalidInterval.
func (e *InvalidIntervalError) Unwrap() error {
	return ErrInvalidInterval
}

// Interval is an immutable range between two bounds, each of which may be
// inclusive or exclusive. It carries the comparison function of its bound
// type so it can be used with types that are not cmp.Ordered, such as time.Time.
//
// The zero value is not usable; build intervals with the constructors.
type Interval[T any] struct {
	start          T
	end            T
	startInclusive bool
	endInclusive   bool
	compare        func(a, b T) int
}

// New creates an interval over an ordered type.
func New[T cmp.Ordered](start T, startInclusive bool, end T, endInclusive bool) (Interval[T], error) {
	return NewFunc(start, startInclusive, end, endInclusive, cmp.Compare[T])
}

// NewFunc creates an interval whose bounds are ordered by compare.
// It rejects start > end, and equal bounds unless both are inclusive.
func NewFunc[T any](start T, startInclusive bool, end T, endInclusive bool, compare func(a, b T) int) (Interval[T], error) {
	c := compare(start, end)
	if c > 0 {
		return Interval[T]{}, &InvalidIntervalError{
			Notation: notation(start, startInclusive, end, endInclusive),
			Reason:   "expected start <= end",
		}
	}
	if c == 0 && (!startInclusive || !endInclusive) {
		return Interval[T]{}, &InvalidIntervalError{
			Notation: notation(start, startInclusive, end, endInclusive),
			Reason:   "interval with equal bounds must be inclusive on both sides",
		}
	}

	return Interval[T]{
		start:          start,
		end:            end,
		startInclusive: startInclusive,
		endInclusive:   endInclusive,
		compare:        compare,
	}, nil
}

// Closed creates [start, end].
func Closed[T cmp.Ordered](start, end T) (Interval[T], error) {
	return New(start, true, end, true)
}

// Open creates (start, end).
func Open[T cmp.Ordered](start, end T) (Interval[T], error) {
	return New(start, false, end, false)
}

// ClosedOpen creates [start, end).
func ClosedOpen[T cmp.Ordered](start, end T) (Interval[T], error) {
	return New(start, true, end, false)
}

// OpenClosed creates (start, end].
func OpenClosed[T cmp.Ordered](start, end T) (Interval[T], error) {
	return New(start, false, end, true)
}

// Point creates the single-value interval [v, v].
func Point[T cmp.Ordered](v T) Interval[T] {
	return PointFunc(v, cmp.Compare[T])
}

// ClosedFunc creates [start, end] ordered by compare.
func ClosedFunc[T any](start, end T, compare func(a, b T) int) (Interval[T], error) {
	return NewFunc(start, true, end, true, compare)
}

// PointFunc creates [v, v] ordered by compare.
func PointFunc[T any](v T, compare func(a, b T) int) Interval[T] {
	return Interval[T]{start: v, end: v, startInclusive: true, endInclusive: true, compare: compare}
}

// CompareTime orders time.Time values.
func CompareTime(a, b time.Time) int {
	return a.Compare(b)
}

// ClosedTime creates the closed time interval [start, end].
func ClosedTime(start, end time.Time) (Interval[time.Time], error) {
	return ClosedFunc(start, end, CompareTime)
}

// Start returns the start bound.
func (i Interval[T]) Start() T { return i.start }

// End returns the end bound.
func (i Interval[T]) End() T { return i.end }

// StartInclusive reports whether the start bound is inclusive.
func (i Interval[T]) StartInclusive() bool { return i.startInclusive }

// EndInclusive reports whether the end bound is inclusive.
func (i Interval[T]) EndInclusive() bool { return i.endInclusive }

// WithStart returns a copy with a new start value, keeping the inclusivity flags.
func (i Interval[T]) WithStart(start T) (Interval[T], error) {
	return NewFunc(start, i.startInclusive, i.end, i.endInclusive, i.compare)
}

// WithEnd returns a copy with a new end value, keeping the inclusivity flags.
func (i Interval[T]) WithEnd(end T) (Interval[T], error) {
	return NewFunc(i.start, i.startInclusive, end, i.endInclusive, i.compare)
}

// Contains reports whether v lies within the interval, honoring bound inclusivity.
func (i Interval[T]) Contains(v T) bool {
	startCmp := i.compare(v, i.start)
	endCmp := i.compare(v, i.end)

	afterStart := startCmp > 0 || (i.startInclusive && startCmp == 0)
	beforeEnd := endCmp < 0 || (i.endInclusive && endCmp == 0)

	return afterStart && beforeEnd
}

// ContainsInterval reports whether other lies completely within the interval.
func (i Interval[T]) ContainsInterval(other Interval[T]) bool {
	return i.compareBound(i.start, i.startInclusive, other.start, other.startInclusive, startInclusiveSign) <= 0 &&
		i.compareBound(i.end, i.endInclusive, other.end, other.endInclusive, endInclusiveSign) >= 0
}

// IsBefore reports whether the interval ends before other starts.
func (i Interval[T]) IsBefore(other Interval[T]) bool {
	c := i.compare(i.end, other.start)
	return c < 0 || (c == 0 && (!i.endInclusive || !other.startInclusive))
}

// IsAfter reports whether the interval starts after other ends.
func (i Interval[T]) IsAfter(other Interval[T]) bool {
	return other.IsBefore(i)
}

// OverlapsWith reports whether the two intervals share at least one value.
func (i Interval[T]) OverlapsWith(other Interval[T]) bool {
	return !i.IsBefore(other) && !i.IsAfter(other)
}

// Equal reports whether both intervals have the same bounds and inclusivity.
func (i Interval[T]) Equal(other Interval[T]) bool {
	return i.startInclusive == other.startInclusive &&
		i.endInclusive == other.endInclusive &&
		i.compare(i.start, other.start) == 0 &&
		i.compare(i.end, other.end) == 0
}

// String returns the interval in mathematical notation, e.g. "[1, 5)".
func (i Interval[T]) String() string {
	return notation(i.start, i.startInclusive, i.end, i.endInclusive)
}

func (i Interval[T]) compareBound(a T, aInclusive bool, b T, bInclusive bool, inclusiveSign int) int {
	if c := i.compare(a, b); c != 0 {
		return c
	}
	if aInclusive == bInclusive {
		return 0
	}
	if aInclusive {
		return inclusiveSign
	}
	return -inclusiveSign
}

// Intersection returns the largest interval contained by all the given
// intervals. ok is false when they do not share a common sub-interval.
func Intersection[T any](intervals ...Interval[T]) (result Interval[T], ok bool, err error) {
	if len(intervals) == 0 {
		return Interval[T]{}, false, ErrEmptyIntersection
	}

	first := intervals[0]
	maxStart, maxStartInclusive := first.start, first.startInclusive
	minEnd, minEndInclusive := first.end, first.endInclusive

	for _, iv := range intervals[1:] {
		if first.compareBound(iv.start, iv.startInclusive, maxStart, maxStartInclusive, startInclusiveSign) > 0 {
			maxStart, maxStartInclusive = iv.start, iv.startInclusive
		}
		if first.compareBound(iv.end, iv.endInclusive, minEnd, minEndInclusive, endInclusiveSign) < 0 {
			minEnd, minEndInclusive = iv.end, iv.endInclusive
		}
	}

	result, err = NewFunc(maxStart, maxStartInclusive, minEnd, minEndInclusive, first.compare)
	if err != nil {
		return Interval[T]{}, false, nil
	}
	return result, true, nil
}

// Map converts an interval to another bound type by applying fn to both
// bounds. Inclusivity is preserved. An error from fn, or bounds that no
// longer form a valid interval, are returned to the caller.
func Map[T, U any](i Interval[T], fn func(T) (U, error), compare func(a, b U) int) (Interval[U], error) {
	start, err := fn(i.start)
	if err != nil {
		return Interval[U]{}, err
	}
	end, err := fn(i.end)
	if err != nil {
		return Interval[U]{}, err
	}
	return NewFunc(start, i.startInclusive, end, i.endInclusive, compare)
}

// SmallestCover returns the smallest subset of points that covers the
// interval, where key extracts each point's position on the interval's axis.
//
// The result holds every point whose key lies within [start, end], plus the
// last point before start when no point sits exactly on start, plus the first
// point after end when no point sits exactly on end. A cover needs a point at
// or before start and a point at or after end; when either is missing the
// result is empty.
//
// Points must be strictly ascending by key, otherwise ErrUnsortedPoints is returned.
func SmallestCover[T, P any](i Interval[T], points []P, key func(P) T) ([]P, error) {
	lastBefore, firstAfter := -1, -1
	var within []P

	var previous T
	for idx, p := range points {
		k := key(p)
		if idx > 0 && i.compare(k, previous) <= 0 {
			return nil, fmt.Errorf("%w, but found %s after %s", ErrUnsortedPoints, formatValue(k), formatValue(previous))
		}
		previous = k

		switch {
		case i.compare(k, i.start) < 0:
			lastBefore = idx
		case i.compare(k, i.end) > 0:
			if firstAfter < 0 {
				firstAfter = idx
			}
		default:
			within = append(within, p)
		}
	}

	startOnPoint := len(within) > 0 && i.compare(key(within[0]), i.start) == 0
	endOnPoint := len(within) > 0 && i.compare(key(within[len(within)-1]), i.end) == 0

	if (lastBefore < 0 && !startOnPoint) || (firstAfter < 0 && !endOnPoint) {
		return nil, nil
	}

	result := make([]P, 0, len(within)+2)
	if lastBefore >= 0 && !startOnPoint {
		result = append(result, points[lastBefore])
	}
	result = append(result, within...)
	if firstAfter >= 0 && !endOnPoint {
		result = append(result, points[firstAfter])
	}

	return result, nil
}

func notation[T any](start T, startInclusive bool, end T, endInclusive bool) string {
	open, closing := "(", ")"
	if startInclusive {
		open = "["
	}
	if endInclusive {
		closing = "]"
	}
	return open + formatValue(start) + ", " + formatValue(end) + closing
}

func formatValue(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}
