package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/backstop/pkg/config"
)

// Collector owns the Prometheus registry served on the metrics endpoint.
//
// Retention and restore register their own collectors through Registerer;
// Collector adds the Go runtime, process and build info collectors and, once
// WatchStore is called, the store inventory.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	inventory *InventoryCollector
}

// NewCollector creates a collector over registry. If registry is nil a new
// one is created.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	pruner, _ := retention.NewPruner(st, topo, rcfg,
//		retention.WithRegisterer(collector.Registerer()))
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: cfg.Namespace}),
		collectors.NewBuildInfoCollector(),
	)

	return &Collector{
		config:   cfg,
		registry: registry,
	}
}

// WatchStore registers an inventory collector for the backups and ranges of
// every partition the source reports. Calling it again replaces the previous
// inventory.
func (c *Collector) WatchStore(source InventorySource) error {
	inventory := NewInventoryCollector(c.config.Namespace, source)
	if c.inventory != nil {
		c.registry.Unregister(c.inventory)
	}
	if err := c.registry.Register(inventory); err != nil {
		return err
	}
	c.inventory = inventory
	return nil
}

// Namespace returns the metric namespace components should use.
func (c *Collector) Namespace() string {
	return c.config.Namespace
}

// Registerer returns the registerer components add their collectors to.
func (c *Collector) Registerer() prometheus.Registerer {
	return c.registry
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
