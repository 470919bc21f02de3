package retention

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/backstop/pkg/backup"
)

// Metrics contains the Prometheus gauges of the retention engine.
type Metrics struct {
	backupsDeleted   *prometheus.GaugeVec
	rangesDeleted    *prometheus.GaugeVec
	earliestBackupID *prometheus.GaugeVec
	lastExecution    prometheus.Gauge
	nextExecution    prometheus.Gauge

	mu         sync.Mutex
	registerer prometheus.Registerer
}

// NewMetrics creates the retention gauges. They are not registered until
// Register is called.
func NewMetrics(namespace, subsystem string) *Metrics {
	if subsystem == "" {
		subsystem = "retention"
	}

	return &Metrics{
		backupsDeleted: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "backups_deleted_round",
				Help:      "Number of backups deleted in the last retention round",
			},
			[]string{"partition"},
		),

		rangesDeleted: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "ranges_deleted_round",
				Help:      "Number of backup ranges deleted in the last retention round",
			},
			[]string{"partition"},
		),

		earliestBackupID: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "earliest_backup_id",
				Help:      "Checkpoint id of the oldest retained completed backup",
			},
			[]string{"partition"},
		),

		lastExecution: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "last_execution_timestamp_seconds",
				Help:      "Unix time of the last retention round",
			},
		),

		nextExecution: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "next_execution_timestamp_seconds",
				Help:      "Unix time of the next scheduled retention round",
			},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.backupsDeleted,
		m.rangesDeleted,
		m.earliestBackupID,
		m.lastExecution,
		m.nextExecution,
	}
}

// Register registers every gauge with reg. Registering twice is a no-op;
// on failure the gauges registered so far are removed again.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registerer != nil {
		return nil
	}

	var registered []prometheus.Collector
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				err = errors.New("retention metrics already registered by another pruner")
			}
			for _, r := range registered {
				reg.Unregister(r)
			}
			return err
		}
		registered = append(registered, c)
	}

	m.registerer = reg
	return nil
}

// Unregister removes every gauge from the registerer passed to Register.
func (m *Metrics) Unregister() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registerer == nil {
		return
	}
	for _, c := range m.collectors() {
		m.registerer.Unregister(c)
	}
	m.registerer = nil
}

// recordPartition publishes the outcome of a partition's round.
func (m *Metrics) recordPartition(report *PartitionReport) {
	label := strconv.Itoa(report.Partition)
	m.backupsDeleted.WithLabelValues(label).Set(float64(len(report.DeletedBackups)))

	starts := 0
	for _, marker := range report.DeletedMarkers {
		if marker.Kind == backup.MarkerStart {
			starts++
		}
	}
	m.rangesDeleted.WithLabelValues(label).Set(float64(starts))

	if report.EarliestBackupID != nil {
		m.earliestBackupID.WithLabelValues(label).Set(float64(*report.EarliestBackupID))
	}
}

func (m *Metrics) recordExecution(last time.Time, next *time.Time) {
	m.lastExecution.Set(float64(last.Unix()))
	m.recordNext(next)
}

func (m *Metrics) recordNext(next *time.Time) {
	if next != nil {
		m.nextExecution.Set(float64(next.Unix()))
	}
}
