package backup

import (
	"cmp"
	"fmt"
)

// MarkerKind is the kind of a range marker. At equal checkpoint ids markers
// sort Start, then Deletion, then End.
type MarkerKind int

const (
	MarkerStart MarkerKind = iota
	MarkerDeletion
	MarkerEnd
)

var markerKindNames = map[MarkerKind]string{
	MarkerStart:    "start",
	MarkerDeletion: "deletion",
	MarkerEnd:      "end",
}

// String returns the text form of the kind.
func (k MarkerKind) String() string {
	if name, ok := markerKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("marker(%d)", int(k))
}

// ParseMarkerKind parses the text form of a marker kind.
func ParseMarkerKind(s string) (MarkerKind, error) {
	for kind, name := range markerKindNames {
		if name == s {
			return kind, nil
		}
	}
	return MarkerStart, fmt.Errorf("unknown range marker kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k MarkerKind) MarshalText() ([]byte, error) {
	if _, ok := markerKindNames[k]; !ok {
		return nil, fmt.Errorf("unknown range marker kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *MarkerKind) UnmarshalText(text []byte) error {
	kind, err := ParseMarkerKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// RangeMarker is a persisted event in a partition's range log. Replaying the
// markers of a partition in order reconstructs its backup ranges.
type RangeMarker struct {
	Kind         MarkerKind `json:"kind"`
	CheckpointID int64      `json:"checkpoint_id"`
}

// Start marks the first checkpoint of a range.
func Start(checkpointID int64) RangeMarker {
	return RangeMarker{Kind: MarkerStart, CheckpointID: checkpointID}
}

// End marks the last checkpoint of a range.
func End(checkpointID int64) RangeMarker {
	return RangeMarker{Kind: MarkerEnd, CheckpointID: checkpointID}
}

// Deletion marks a checkpoint deleted from inside a range.
func Deletion(checkpointID int64) RangeMarker {
	return RangeMarker{Kind: MarkerDeletion, CheckpointID: checkpointID}
}

// String returns e.g. "start(100)".
func (m RangeMarker) String() string {
	return fmt.Sprintf("%s(%d)", m.Kind, m.CheckpointID)
}

// CompareMarkers orders markers by checkpoint id, then kind.
func CompareMarkers(a, b RangeMarker) int {
	return cmp.Or(
		cmp.Compare(a.CheckpointID, b.CheckpointID),
		cmp.Compare(a.Kind, b.Kind),
	)
}
