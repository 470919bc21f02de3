package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"mercator-hq/backstop/pkg/config"
	"mercator-hq/backstop/pkg/telemetry/health"
	"mercator-hq/backstop/pkg/telemetry/logging"
	"mercator-hq/backstop/pkg/telemetry/metrics"
	"mercator-hq/backstop/pkg/telemetry/tracing"
)

// Telemetry bundles the logger, metrics, tracer and health checker of a
// process.
type Telemetry struct {
	config  *config.TelemetryConfig
	version health.VersionInfo

	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	health  *health.Checker

	server *http.Server
}

// New builds every telemetry component from cfg. The tracer provider is
// installed globally when tracing is enabled.
func New(cfg *config.TelemetryConfig, version health.VersionInfo) (*Telemetry, error) {
	logger, err := logging.New(logging.ConfigFrom(cfg.Logging))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	tracer, err := tracing.New(&cfg.Tracing, tracing.WithServiceVersion(version.Version))
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	return &Telemetry{
		config:  cfg,
		version: version,
		logger:  logger,
		metrics: metrics.NewCollector(&cfg.Metrics, nil),
		tracer:  tracer,
		health:  health.New(cfg.Health.CheckTimeout),
	}, nil
}

// Logger returns the process logger.
func (t *Telemetry) Logger() *slog.Logger { return t.logger }

// Metrics returns the metrics collector.
func (t *Telemetry) Metrics() *metrics.Collector { return t.metrics }

// Tracer returns the tracer.
func (t *Telemetry) Tracer() *tracing.Tracer { return t.tracer }

// Health returns the health checker.
func (t *Telemetry) Health() *health.Checker { return t.health }

// Handler returns the mux serving metrics and the health probes.
func (t *Telemetry) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(t.config.Metrics.Path, t.metrics.Handler())
	health.Mount(mux, t.health, t.config.Health, t.version)
	return mux
}

// Serve starts the metrics and health endpoint in the background. It is a
// no-op when metrics are disabled. The returned address is the one actually
// bound, which differs from the configured one for port 0.
func (t *Telemetry) Serve() (string, error) {
	if !t.config.Metrics.IsEnabled() {
		return "", nil
	}

	ln, err := net.Listen("tcp", t.config.Metrics.ListenAddress)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", t.config.Metrics.ListenAddress, err)
	}

	t.server = &http.Server{
		Handler:           t.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := t.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("telemetry endpoint stopped", "error", err)
		}
	}()

	t.logger.Info("telemetry endpoint listening", "address", ln.Addr().String())
	return ln.Addr().String(), nil
}

// Shutdown stops the endpoint and flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.server != nil {
		if err := t.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry endpoint: %w", err))
		}
	}
	if err := t.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer: %w", err))
	}
	return errors.Join(errs...)
}
