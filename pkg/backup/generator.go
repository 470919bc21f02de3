package backup

import "time"

// CheckpointIDGenerator derives checkpoint ids from wall-clock time: an id is
// the checkpoint's Unix time in milliseconds plus Offset. Ids are therefore
// monotonic with time for a fixed offset, which is what allows a checkpoint id
// to stand in for a missing timestamp.
type CheckpointIDGenerator struct {
	Offset int64
}

// FromTimestamp returns the checkpoint id for t.
func (g CheckpointIDGenerator) FromTimestamp(t time.Time) int64 {
	return t.UnixMilli() + g.Offset
}

// ToTimestamp returns the time encoded in a checkpoint id.
func (g CheckpointIDGenerator) ToTimestamp(id int64) time.Time {
	return time.UnixMilli(id - g.Offset).UTC()
}

// Next returns the id for a checkpoint taken at now, which is never lower than
// last+1.
func (g CheckpointIDGenerator) Next(last int64, now time.Time) int64 {
	return max(last+1, g.FromTimestamp(now))
}
