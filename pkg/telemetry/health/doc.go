// Package health serves the liveness and readiness probes of a long-running
// backstop process.
//
// # Endpoints
//
//   - liveness (default /healthz): the process is running; runs no checks
//   - readiness (default /readyz): every registered check passes
//   - /version: build information
//
// Readiness answers 503 while any check fails. The built-in checks cover the
// dependencies of retention and restore planning:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("store", health.StoreCheck(st))
//	checker.RegisterCheck("positions", health.PositionsCheck(positions, cfg.Cluster.PartitionCount))
//	health.Mount(mux, checker, cfg.Telemetry.Health, health.VersionInfo{Version: version})
//
// Checks run concurrently, each bounded by the check timeout.
package health
