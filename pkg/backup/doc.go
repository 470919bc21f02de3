// Package backup defines the data model shared by retention and restore
// planning: backup identifiers and statuses, range markers, the backup ranges
// reconstructed from them, and the Store boundary behind which backups live.
//
// # Checkpoints
//
// A checkpoint is one cluster-wide backup round. Every partition takes at most
// one backup per checkpoint, possibly on several nodes; copies of the same
// checkpoint are content-equivalent and DedupeByCheckpoint keeps one of them.
// Checkpoint ids come from a CheckpointIDGenerator and grow with wall-clock
// time.
//
// # Ranges
//
// Each partition keeps a log of range markers:
//
//	start(100) end(300) start(400) deletion(500) end(600)
//
// RangesFromMarkers replays the log into ranges. The example yields
// complete[100, 300] followed by incomplete[400, 600] deleted=[500]. A
// Complete range can supply any sub-chain of checkpoints; an Incomplete one
// only sub-chains that avoid its deleted checkpoints.
//
// # Stores
//
// Concrete stores live in the store subpackage:
//
//   - Memory: in-memory store for tests and dry runs
//   - SQLite: local catalog database
//   - S3: object storage, one status object per backup copy
package backup
