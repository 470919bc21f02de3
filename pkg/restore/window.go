package restore

import (
	"errors"
	"fmt"
	"time"

	"mercator-hq/backstop/pkg/backup/interval"
)

// ErrInvalidWindow is returned for a window whose From lies after its To.
var ErrInvalidWindow = errors.New("invalid restore window")

// Window is the point-in-time range a restore must cover. A nil bound is
// open: it takes the corresponding bound of the backup range considered, so
// a window without bounds selects the newest usable range as a whole.
type Window struct {
	From *time.Time
	To   *time.Time
}

// Between returns the window [from, to].
func Between(from, to time.Time) Window {
	return Window{From: &from, To: &to}
}

// Validate checks that From does not lie after To.
func (w Window) Validate() error {
	if w.From != nil && w.To != nil && w.From.After(*w.To) {
		return fmt.Errorf("%w: from %s is after to %s", ErrInvalidWindow,
			w.From.UTC().Format(time.RFC3339), w.To.UTC().Format(time.RFC3339))
	}
	return nil
}

// Within fills the open bounds of the window from bounds and returns the
// resulting closed interval. It fails when the filled bounds are out of order.
func (w Window) Within(bounds interval.Interval[time.Time]) (interval.Interval[time.Time], error) {
	from, to := bounds.Start(), bounds.End()
	if w.From != nil {
		from = *w.From
	}
	if w.To != nil {
		to = *w.To
	}
	return interval.ClosedTime(from, to)
}

// String returns the window in interval notation, "*" marking an open bound.
func (w Window) String() string {
	return "[" + formatBound(w.From) + ", " + formatBound(w.To) + "]"
}

func formatBound(t *time.Time) string {
	if t == nil {
		return "*"
	}
	return t.UTC().Format(time.RFC3339Nano)
}
