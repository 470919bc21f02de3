package backup

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"mercator-hq/backstop/pkg/backup/interval"
)

// StatusCode is the lifecycle state of a backup.
type StatusCode int

const (
	// StatusDoesNotExist means the store has no record of the backup.
	StatusDoesNotExist StatusCode = iota
	// StatusInProgress means the backup is being taken.
	StatusInProgress
	// StatusCompleted means the backup was fully written and can be restored.
	StatusCompleted
	// StatusFailed means taking the backup failed.
	StatusFailed
)

var statusNames = map[StatusCode]string{
	StatusDoesNotExist: "does_not_exist",
	StatusInProgress:   "in_progress",
	StatusCompleted:    "completed",
	StatusFailed:       "failed",
}

// String returns the text form of the status code.
func (c StatusCode) String() string {
	if name, ok := statusNames[c]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(c))
}

// ParseStatusCode parses the text form of a status code.
func ParseStatusCode(s string) (StatusCode, error) {
	for code, name := range statusNames {
		if name == s {
			return code, nil
		}
	}
	return StatusDoesNotExist, fmt.Errorf("unknown backup status %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c StatusCode) MarshalText() ([]byte, error) {
	if _, ok := statusNames[c]; !ok {
		return nil, fmt.Errorf("unknown backup status %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *StatusCode) UnmarshalText(text []byte) error {
	code, err := ParseStatusCode(string(text))
	if err != nil {
		return err
	}
	*c = code
	return nil
}

// CheckpointType tells how a checkpoint was triggered.
type CheckpointType string

const (
	CheckpointScheduled CheckpointType = "scheduled_backup"
	CheckpointManual    CheckpointType = "manual_backup"
)

// Descriptor is the metadata written alongside a backup.
type Descriptor struct {
	SnapshotID          string         `json:"snapshot_id,omitempty"`
	FirstLogPosition    *int64         `json:"first_log_position,omitempty"` // Nil when unknown
	CheckpointPosition  int64          `json:"checkpoint_position"`
	NumberOfPartitions  int            `json:"number_of_partitions"`
	BrokerVersion       string         `json:"broker_version,omitempty"`
	CheckpointTimestamp time.Time      `json:"checkpoint_timestamp"`
	CheckpointType      CheckpointType `json:"checkpoint_type,omitempty"`
}

// LogPositionInterval returns [FirstLogPosition, CheckpointPosition], the log
// entries the backup covers. ok is false when the first position is unknown or
// the bounds do not form a valid interval.
func (d *Descriptor) LogPositionInterval() (iv interval.Interval[int64], ok bool) {
	if d == nil || d.FirstLogPosition == nil {
		return interval.Interval[int64]{}, false
	}
	iv, err := interval.Closed(*d.FirstLogPosition, d.CheckpointPosition)
	if err != nil {
		return interval.Interval[int64]{}, false
	}
	return iv, true
}

// Status is the state of one backup as reported by a store.
type Status struct {
	ID            Identifier  `json:"id"`
	Descriptor    *Descriptor `json:"descriptor,omitempty"`
	Code          StatusCode  `json:"status"`
	FailureReason string      `json:"failure_reason,omitempty"`
	Created       time.Time   `json:"created,omitzero"`       // Zero when unknown
	LastModified  time.Time   `json:"last_modified,omitzero"` // Zero when unknown
}

// IsCompleted reports whether the backup can be restored.
func (s Status) IsCompleted() bool {
	return s.Code == StatusCompleted
}

// Timestamp returns the point in time the backup represents: the descriptor's
// checkpoint timestamp, else the creation time, else the time encoded in the
// checkpoint id by gen.
func (s Status) Timestamp(gen CheckpointIDGenerator) time.Time {
	if s.Descriptor != nil && !s.Descriptor.CheckpointTimestamp.IsZero() {
		return s.Descriptor.CheckpointTimestamp
	}
	if !s.Created.IsZero() {
		return s.Created
	}
	return gen.ToTimestamp(s.ID.CheckpointID)
}

// Validate checks the fields a store relies on.
func (s Status) Validate() error {
	if s.ID.PartitionID < 1 {
		return fmt.Errorf("invalid backup %s: partition id must be >= 1", s.ID)
	}
	if s.ID.NodeID < 0 {
		return fmt.Errorf("invalid backup %s: node id must be >= 0", s.ID)
	}
	if _, ok := statusNames[s.Code]; !ok {
		return fmt.Errorf("invalid backup %s: unknown status %d", s.ID, int(s.Code))
	}
	return nil
}

// DedupeByCheckpoint keeps one status per checkpoint id, the first one seen,
// and returns them sorted by checkpoint id. Copies of the same checkpoint
// taken by different nodes are content-equivalent.
func DedupeByCheckpoint(statuses []Status) []Status {
	seen := make(map[int64]struct{}, len(statuses))
	result := make([]Status, 0, len(statuses))
	for _, s := range statuses {
		if _, ok := seen[s.ID.CheckpointID]; ok {
			continue
		}
		seen[s.ID.CheckpointID] = struct{}{}
		result = append(result, s)
	}

	slices.SortStableFunc(result, func(a, b Status) int {
		return cmp.Compare(a.ID.CheckpointID, b.ID.CheckpointID)
	})
	return result
}
