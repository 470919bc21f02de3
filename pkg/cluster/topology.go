package cluster

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownPartition is returned for partitions a source knows nothing about.
var ErrUnknownPartition = errors.New("unknown partition")

// Topology reports the partitions of the cluster.
type Topology interface {
	// Partitions returns the partition ids, ascending.
	Partitions(ctx context.Context) ([]int, error)
}

// PositionSource reports how far the exporter of each partition has
// progressed through the partition's log.
type PositionSource interface {
	// LastExportedPosition returns the last log position exported for the
	// partition. Returns an error wrapping ErrUnknownPartition when the
	// source has no position for it.
	LastExportedPosition(ctx context.Context, partition int) (int64, error)
}

// StaticTopology is a cluster with partitions 1..Count.
type StaticTopology struct {
	Count int
}

// NewStaticTopology creates a topology with partitions 1..count.
func NewStaticTopology(count int) (*StaticTopology, error) {
	if count < 1 {
		return nil, fmt.Errorf("partition count must be >= 1, got %d", count)
	}
	return &StaticTopology{Count: count}, nil
}

// Partitions returns 1..Count.
func (t *StaticTopology) Partitions(ctx context.Context) ([]int, error) {
	partitions := make([]int, t.Count)
	for i := range partitions {
		partitions[i] = i + 1
	}
	return partitions, nil
}

// CollectPositions asks the source for the position of every partition in
// 1..partitionCount. Partitions without a position are left out of the
// result; any other error aborts.
func CollectPositions(ctx context.Context, source PositionSource, partitionCount int) (map[int]int64, error) {
	positions := make(map[int]int64, partitionCount)
	for partition := 1; partition <= partitionCount; partition++ {
		position, err := source.LastExportedPosition(ctx, partition)
		if errors.Is(err, ErrUnknownPartition) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get exported position of partition %d: %w", partition, err)
		}
		positions[partition] = position
	}
	return positions, nil
}
