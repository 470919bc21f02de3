package backup

import (
	"fmt"
	"strings"

	"mercator-hq/backstop/pkg/backup/interval"
)

// Identifier names one backup: the copy of one partition taken by one node
// for one checkpoint.
type Identifier struct {
	NodeID       int   `json:"node_id"`
	PartitionID  int   `json:"partition_id"`
	CheckpointID int64 `json:"checkpoint_id"`
}

// String returns a compact form such as "partition=1 node=0 checkpoint=100".
func (id Identifier) String() string {
	return fmt.Sprintf("partition=%d node=%d checkpoint=%d", id.PartitionID, id.NodeID, id.CheckpointID)
}

// CheckpointPattern matches checkpoint ids. The zero value matches any checkpoint.
type CheckpointPattern struct {
	ids *interval.Interval[int64]
}

// AnyCheckpoint matches every checkpoint id.
func AnyCheckpoint() CheckpointPattern {
	return CheckpointPattern{}
}

// ExactCheckpoint matches a single checkpoint id.
func ExactCheckpoint(id int64) CheckpointPattern {
	p := interval.Point(id)
	return CheckpointPattern{ids: &p}
}

// CheckpointsIn matches every checkpoint id contained in ids.
func CheckpointsIn(ids interval.Interval[int64]) CheckpointPattern {
	return CheckpointPattern{ids: &ids}
}

// Matches reports whether the checkpoint id satisfies the pattern.
func (p CheckpointPattern) Matches(id int64) bool {
	return p.ids == nil || p.ids.Contains(id)
}

// Interval returns the matched checkpoint interval. ok is false for AnyCheckpoint.
func (p CheckpointPattern) Interval() (iv interval.Interval[int64], ok bool) {
	if p.ids == nil {
		return interval.Interval[int64]{}, false
	}
	return *p.ids, true
}

// String returns "*" for any checkpoint, otherwise the interval notation.
func (p CheckpointPattern) String() string {
	if p.ids == nil {
		return "*"
	}
	return p.ids.String()
}

// Wildcard selects backups by node, partition and checkpoint. Nil fields match
// any value.
type Wildcard struct {
	NodeID      *int
	PartitionID *int
	Checkpoint  CheckpointPattern
}

// AllBackups matches every backup in a store.
func AllBackups() Wildcard {
	return Wildcard{}
}

// ForPartition matches the backups of a partition taken by any node.
func ForPartition(partition int, checkpoint CheckpointPattern) Wildcard {
	return Wildcard{PartitionID: &partition, Checkpoint: checkpoint}
}

// ForNode matches the backups of a partition taken by one node.
func ForNode(node, partition int, checkpoint CheckpointPattern) Wildcard {
	return Wildcard{NodeID: &node, PartitionID: &partition, Checkpoint: checkpoint}
}

// Matches reports whether id is selected by the wildcard.
func (w Wildcard) Matches(id Identifier) bool {
	if w.NodeID != nil && *w.NodeID != id.NodeID {
		return false
	}
	if w.PartitionID != nil && *w.PartitionID != id.PartitionID {
		return false
	}
	return w.Checkpoint.Matches(id.CheckpointID)
}

// String returns a form suitable for logs, e.g. "partition=1 node=* checkpoint=[100, 300]".
func (w Wildcard) String() string {
	var b strings.Builder
	b.WriteString("partition=")
	writeOptional(&b, w.PartitionID)
	b.WriteString(" node=")
	writeOptional(&b, w.NodeID)
	b.WriteString(" checkpoint=")
	b.WriteString(w.Checkpoint.String())
	return b.String()
}

func writeOptional(b *strings.Builder, v *int) {
	if v == nil {
		b.WriteString("*")
		return
	}
	fmt.Fprintf(b, "%d", *v)
}
