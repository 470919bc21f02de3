// Package telemetry wires the observability of a backstop process.
//
// # Components
//
//   - logging: log/slog logger with credential redaction
//   - metrics: Prometheus registry, store inventory and /metrics handler
//   - tracing: OpenTelemetry tracer exporting over OTLP gRPC
//   - health: liveness and readiness probes
//
// # Usage
//
//	tel, err := telemetry.New(&cfg.Telemetry, health.VersionInfo{Version: version})
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	tel.Health().RegisterCheck("store", health.StoreCheck(st))
//	if _, err := tel.Serve(); err != nil {
//	    return err
//	}
//
// Metrics and health probes share telemetry.metrics.listen_address.
package telemetry
