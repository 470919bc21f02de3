// Package cluster provides the cluster facts retention and restore planning
// consume: which partitions exist (Topology) and how far each partition's
// exporter has progressed (PositionSource).
//
// StaticTopology and StaticPositions serve fixed values from configuration or
// command line flags. FilePositions reads positions from a YAML file and can
// reload it on change through a FileWatcher built on fsnotify:
//
//	partitions:
//	  1: 2500
//	  2: 3100
package cluster
