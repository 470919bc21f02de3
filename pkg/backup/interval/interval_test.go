package interval

import (
	"errors"
	"slices"
	"testing"
	"testing/quick"
	"time"
)

func mustClosed(t *testing.T, start, end int64) Interval[int64] {
	t.Helper()
	iv, err := Closed(start, end)
	if err != nil {
		t.Fatalf("Closed(%d, %d) failed: %v", start, end, err)
	}
	return iv
}

func mustNew(t *testing.T, start int64, startInclusive bool, end int64, endInclusive bool) Interval[int64] {
	t.Helper()
	iv, err := New(start, startInclusive, end, endInclusive)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return iv
}

// TestNew_Validation tests bound validation at construction.
func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name           string
		start, end     int64
		startInclusive bool
		endInclusive   bool
		wantErr        bool
	}{
		{name: "closed", start: 1, end: 5, startInclusive: true, endInclusive: true},
		{name: "open", start: 1, end: 5},
		{name: "half open", start: 1, end: 5, startInclusive: true},
		{name: "start after end", start: 5, end: 1, startInclusive: true, endInclusive: true, wantErr: true},
		{name: "point", start: 3, end: 3, startInclusive: true, endInclusive: true},
		{name: "equal bounds exclusive start", start: 3, end: 3, endInclusive: true, wantErr: true},
		{name: "equal bounds exclusive end", start: 3, end: 3, startInclusive: true, wantErr: true},
		{name: "equal bounds open", start: 3, end: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.start, tt.startInclusive, tt.end, tt.endInclusive)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInterval) {
				t.Errorf("expected ErrInvalidInterval, got %v", err)
			}
		})
	}
}

// TestNew_InvalidProperty checks that construction fails exactly when the
// bounds are reversed or equal without both sides inclusive.
func TestNew_InvalidProperty(t *testing.T) {
	f := func(a, b int64, si, ei bool) bool {
		_, err := New(a, si, b, ei)
		invalid := a > b || (a == b && (!si || !ei))
		return (err != nil) == invalid
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestContains(t *testing.T) {
	tests := []struct {
		name     string
		interval Interval[int64]
		value    int64
		want     bool
	}{
		{name: "inside closed", interval: mustClosed(t, 1, 10), value: 5, want: true},
		{name: "on closed start", interval: mustClosed(t, 1, 10), value: 1, want: true},
		{name: "on closed end", interval: mustClosed(t, 1, 10), value: 10, want: true},
		{name: "on open start", interval: mustNew(t, 1, false, 10, true), value: 1, want: false},
		{name: "on open end", interval: mustNew(t, 1, true, 10, false), value: 10, want: false},
		{name: "before", interval: mustClosed(t, 1, 10), value: 0, want: false},
		{name: "after", interval: mustClosed(t, 1, 10), value: 11, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.interval.Contains(tt.value); got != tt.want {
				t.Errorf("%s.Contains(%d) = %v, want %v", tt.interval, tt.value, got, tt.want)
			}
		})
	}
}

// TestContains_PointDuality checks that value containment agrees with
// containment of the point interval at that value.
func TestContains_PointDuality(t *testing.T) {
	f := func(a, b, x int64, si, ei bool) bool {
		lo, hi := min(a, b), max(a, b)
		iv, err := New(lo, si, hi, ei)
		if err != nil {
			return true
		}
		return iv.Contains(x) == iv.ContainsInterval(Point(x))
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestContainsInterval(t *testing.T) {
	tests := []struct {
		name  string
		outer Interval[int64]
		inner Interval[int64]
		want  bool
	}{
		{name: "strictly inside", outer: mustClosed(t, 1, 10), inner: mustClosed(t, 2, 9), want: true},
		{name: "same closed", outer: mustClosed(t, 1, 10), inner: mustClosed(t, 1, 10), want: true},
		{name: "closed contains open", outer: mustClosed(t, 1, 10), inner: mustNew(t, 1, false, 10, false), want: true},
		{name: "open does not contain closed", outer: mustNew(t, 1, false, 10, false), inner: mustClosed(t, 1, 10), want: false},
		{name: "exclusive end vs inclusive end", outer: mustNew(t, 1, true, 10, false), inner: mustClosed(t, 5, 10), want: false},
		{name: "overlapping only", outer: mustClosed(t, 1, 10), inner: mustClosed(t, 5, 15), want: false},
		{name: "point on start", outer: mustClosed(t, 1, 10), inner: Point[int64](1), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outer.ContainsInterval(tt.inner); got != tt.want {
				t.Errorf("%s.ContainsInterval(%s) = %v, want %v", tt.outer, tt.inner, got, tt.want)
			}
		})
	}
}

func TestOrdering(t *testing.T) {
	tests := []struct {
		name         string
		a, b         Interval[int64]
		wantBefore   bool
		wantAfter    bool
		wantOverlaps bool
	}{
		{name: "disjoint", a: mustClosed(t, 1, 5), b: mustClosed(t, 10, 15), wantBefore: true},
		{name: "touching closed", a: mustClosed(t, 1, 5), b: mustClosed(t, 5, 10), wantOverlaps: true},
		{name: "touching half open", a: mustNew(t, 1, true, 5, false), b: mustClosed(t, 5, 10), wantBefore: true},
		{name: "touching exclusive start", a: mustClosed(t, 1, 5), b: mustNew(t, 5, false, 10, true), wantBefore: true},
		{name: "reversed", a: mustClosed(t, 10, 15), b: mustClosed(t, 1, 5), wantAfter: true},
		{name: "nested", a: mustClosed(t, 1, 20), b: mustClosed(t, 5, 10), wantOverlaps: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.IsBefore(tt.b); got != tt.wantBefore {
				t.Errorf("IsBefore() = %v, want %v", got, tt.wantBefore)
			}
			if got := tt.a.IsAfter(tt.b); got != tt.wantAfter {
				t.Errorf("IsAfter() = %v, want %v", got, tt.wantAfter)
			}
			if got := tt.a.OverlapsWith(tt.b); got != tt.wantOverlaps {
				t.Errorf("OverlapsWith() = %v, want %v", got, tt.wantOverlaps)
			}
			if tt.a.OverlapsWith(tt.b) != tt.b.OverlapsWith(tt.a) {
				t.Error("OverlapsWith() is not symmetric")
			}
		})
	}
}

func TestIntersection(t *testing.T) {
	t.Run("overlapping", func(t *testing.T) {
		got, ok, err := Intersection(mustClosed(t, 1, 10), mustClosed(t, 5, 15))
		if err != nil || !ok {
			t.Fatalf("Intersection() = %v, %v, %v", got, ok, err)
		}
		if !got.Equal(mustClosed(t, 5, 10)) {
			t.Errorf("Intersection() = %s, want [5, 10]", got)
		}
	})

	t.Run("disjoint", func(t *testing.T) {
		_, ok, err := Intersection(mustClosed(t, 1, 5), mustClosed(t, 10, 15))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("expected empty intersection")
		}
	})

	t.Run("keeps most restrictive inclusivity", func(t *testing.T) {
		got, ok, _ := Intersection(mustClosed(t, 1, 10), mustNew(t, 1, false, 10, false), mustClosed(t, 0, 8))
		if !ok {
			t.Fatal("expected non-empty intersection")
		}
		want := mustNew(t, 1, false, 8, true)
		if !got.Equal(want) {
			t.Errorf("Intersection() = %s, want %s", got, want)
		}
	})

	t.Run("touching at excluded bound", func(t *testing.T) {
		_, ok, _ := Intersection(mustNew(t, 1, true, 5, false), mustClosed(t, 5, 10))
		if ok {
			t.Error("expected empty intersection")
		}
	})

	t.Run("no input", func(t *testing.T) {
		_, _, err := Intersection[int64]()
		if !errors.Is(err, ErrEmptyIntersection) {
			t.Errorf("expected ErrEmptyIntersection, got %v", err)
		}
	})
}

func TestSmallestCover(t *testing.T) {
	tests := []struct {
		name     string
		interval Interval[int64]
		points   []int64
		want     []int64
	}{
		{name: "exact matches", interval: mustClosed(t, 3, 7), points: []int64{1, 3, 5, 7, 9}, want: []int64{3, 5, 7}},
		{name: "neighbours", interval: mustClosed(t, 4, 6), points: []int64{1, 3, 5, 7, 9}, want: []int64{3, 5, 7}},
		{name: "nothing within", interval: mustClosed(t, 4, 6), points: []int64{1, 3, 7, 9}, want: []int64{3, 7}},
		{name: "no end coverage", interval: mustClosed(t, 10, 20), points: []int64{1, 3, 5}, want: nil},
		{name: "no start coverage", interval: mustClosed(t, 0, 4), points: []int64{1, 3, 5}, want: nil},
		{name: "point on point", interval: Point[int64](3), points: []int64{1, 3, 5}, want: []int64{3}},
		{name: "no points", interval: mustClosed(t, 1, 2), points: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SmallestCover(tt.interval, tt.points, func(p int64) int64 { return p })
			if err != nil {
				t.Fatalf("SmallestCover() failed: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("SmallestCover(%s, %v) = %v, want %v", tt.interval, tt.points, got, tt.want)
			}
		})
	}
}

func TestSmallestCover_Unsorted(t *testing.T) {
	tests := []struct {
		name   string
		points []int64
	}{
		{name: "descending", points: []int64{5, 3, 1}},
		{name: "duplicates", points: []int64{1, 3, 3, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SmallestCover(mustClosed(t, 1, 5), tt.points, func(p int64) int64 { return p })
			if !errors.Is(err, ErrUnsortedPoints) {
				t.Errorf("expected ErrUnsortedPoints, got %v", err)
			}
		})
	}
}

// TestSmallestCover_KeyedPoints tests covering a time window with points of
// another type.
func TestSmallestCover_KeyedPoints(t *testing.T) {
	type snapshot struct {
		id int64
		at time.Time
	}

	base := time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC)
	points := []snapshot{
		{id: 100, at: base},
		{id: 200, at: base.Add(20 * time.Minute)},
		{id: 300, at: base.Add(40 * time.Minute)},
		{id: 400, at: base.Add(60 * time.Minute)},
	}

	window, err := ClosedTime(base.Add(25*time.Minute), base.Add(40*time.Minute))
	if err != nil {
		t.Fatalf("ClosedTime() failed: %v", err)
	}

	got, err := SmallestCover(window, points, func(s snapshot) time.Time { return s.at })
	if err != nil {
		t.Fatalf("SmallestCover() failed: %v", err)
	}

	var ids []int64
	for _, s := range got {
		ids = append(ids, s.id)
	}
	if !slices.Equal(ids, []int64{200, 300}) {
		t.Errorf("SmallestCover() ids = %v, want [200 300]", ids)
	}
}

func TestMap(t *testing.T) {
	base := time.UnixMilli(0).UTC()
	toTime := func(id int64) (time.Time, error) {
		return base.Add(time.Duration(id) * time.Millisecond), nil
	}

	iv := mustNew(t, 100, true, 200, false)
	mapped, err := Map(iv, toTime, CompareTime)
	if err != nil {
		t.Fatalf("Map() failed: %v", err)
	}

	if !mapped.Start().Equal(base.Add(100*time.Millisecond)) || !mapped.End().Equal(base.Add(200*time.Millisecond)) {
		t.Errorf("Map() = %s", mapped)
	}
	if !mapped.StartInclusive() || mapped.EndInclusive() {
		t.Error("Map() did not preserve inclusivity")
	}
	if got := mapped.String(); got != "[1970-01-01T00:00:00.1Z, 1970-01-01T00:00:00.2Z)" {
		t.Errorf("String() = %q", got)
	}

	t.Run("mapper error", func(t *testing.T) {
		wantErr := errors.New("descriptor missing")
		_, err := Map(iv, func(int64) (time.Time, error) { return time.Time{}, wantErr }, CompareTime)
		if !errors.Is(err, wantErr) {
			t.Errorf("expected mapper error, got %v", err)
		}
	})

	t.Run("non monotonic mapper", func(t *testing.T) {
		_, err := Map(iv, func(v int64) (int64, error) { return -v, nil }, func(a, b int64) int { return int(a - b) })
		if !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("expected ErrInvalidInterval, got %v", err)
		}
	})
}

func TestWithEnd(t *testing.T) {
	iv := mustClosed(t, 1, 1000)

	extended, err := iv.WithEnd(1001)
	if err != nil {
		t.Fatalf("WithEnd() failed: %v", err)
	}
	if !extended.Equal(mustClosed(t, 1, 1001)) {
		t.Errorf("WithEnd() = %s", extended)
	}

	if _, err := iv.WithStart(2000); err == nil {
		t.Error("expected error for start beyond end")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		interval Interval[int64]
		want     string
	}{
		{interval: mustClosed(t, 1, 5), want: "[1, 5]"},
		{interval: mustNew(t, 1, false, 5, false), want: "(1, 5)"},
		{interval: mustNew(t, 1, true, 5, false), want: "[1, 5)"},
		{interval: Point[int64](7), want: "[7, 7]"},
	}

	for _, tt := range tests {
		if got := tt.interval.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
