// Backstop manages the retention of partitioned backups and plans
// point-in-time restores across partitions.
//
// Usage:
//
//	# Run scheduled retention with metrics and health endpoints
//	backstop run --config /etc/backstop/config.yaml
//
//	# Prune once, or show what would be pruned
//	backstop retention prune --dry-run
//
//	# Plan a restore to a point in time
//	backstop restore plan --to 2026-10-18T12:00:00Z --position 1=2500 --position 2=3100
//
//	# Inspect the store
//	backstop ranges list --partition 1
//	backstop backups list --status completed
package main

import "os"

func main() {
	os.Exit(Execute())
}
