// Package metrics exposes backstop's Prometheus metrics.
//
// # Overview
//
// A Collector owns the registry served on the metrics endpoint. Components
// register their own metrics on it:
//
//   - backstop_retention_*: per-partition deletions and schedule timestamps
//   - backstop_restore_*: resolution outcomes and durations
//   - backstop_store_*: the store inventory, read on each scrape
//   - go_*, process_*: runtime and process collectors
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	if err := collector.WatchStore(metrics.InventorySource{
//		Store:    st,
//		Topology: topo,
//	}); err != nil {
//		return err
//	}
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Store inventory
//
// The inventory collector lists every partition's backups and range markers
// when scraped:
//
//	backstop_store_backups{partition="0",status="completed"} 12
//	backstop_store_ranges{partition="0",state="complete"} 1
//	backstop_store_latest_backup_id{partition="0"} 4200
//	backstop_store_scrape_success 1
//
// A scrape that cannot read a partition omits its series and reports
// scrape_success 0.
package metrics
