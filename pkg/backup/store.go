package backup

import "context"

// Store is the boundary to wherever backups and range markers are kept.
//
// Implementations must be safe for concurrent use: retention and restore
// planning call a store from one goroutine per partition. Methods block until
// the operation completes or ctx is done; callers own retries.
type Store interface {
	// List returns the status of every backup matched by the wildcard.
	// Returns an empty slice if nothing matches.
	List(ctx context.Context, wildcard Wildcard) ([]Status, error)

	// Save creates or replaces the status of a backup.
	Save(ctx context.Context, status Status) error

	// Delete removes a backup. Deleting a backup that does not exist succeeds.
	Delete(ctx context.Context, id Identifier) error

	// RangeMarkers returns the range markers of a partition in no particular order.
	RangeMarkers(ctx context.Context, partition int) ([]RangeMarker, error)

	// StoreRangeMarker persists a range marker. Storing an existing marker succeeds.
	StoreRangeMarker(ctx context.Context, partition int, marker RangeMarker) error

	// DeleteRangeMarker removes a range marker. Removing a missing marker succeeds.
	DeleteRangeMarker(ctx context.Context, partition int, marker RangeMarker) error

	// Close releases the resources held by the store.
	Close() error
}

// HealthChecker is implemented by stores that can verify their backend is
// reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
