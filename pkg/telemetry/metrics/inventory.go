package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/backstop/pkg/backup"
	"mercator-hq/backstop/pkg/cluster"
)

const inventorySubsystem = "store"

// DefaultInventoryTimeout bounds one inventory scrape.
const DefaultInventoryTimeout = 10 * time.Second

// InventorySource is what an InventoryCollector reads on each scrape.
type InventorySource struct {
	Store    backup.Store
	Topology cluster.Topology

	// Timeout bounds the store reads of one scrape (defaults to DefaultInventoryTimeout)
	Timeout time.Duration
}

// InventoryCollector reports the backups and ranges held by a store. It reads
// the store on every scrape, so the values are never staler than the
// scrape interval.
type InventoryCollector struct {
	source InventorySource

	backups        *prometheus.Desc
	ranges         *prometheus.Desc
	latestBackupID *prometheus.Desc
	scrapeSuccess  *prometheus.Desc
	scrapeDuration *prometheus.Desc
}

// NewInventoryCollector creates an inventory collector for source.
func NewInventoryCollector(namespace string, source InventorySource) *InventoryCollector {
	if source.Timeout <= 0 {
		source.Timeout = DefaultInventoryTimeout
	}
	return &InventoryCollector{
		source: source,
		backups: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, inventorySubsystem, "backups"),
			"Number of backups in the store by status",
			[]string{"partition", "status"}, nil,
		),
		ranges: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, inventorySubsystem, "ranges"),
			"Number of backup ranges in the store by state",
			[]string{"partition", "state"}, nil,
		),
		latestBackupID: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, inventorySubsystem, "latest_backup_id"),
			"Checkpoint id of the newest completed backup",
			[]string{"partition"}, nil,
		),
		scrapeSuccess: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, inventorySubsystem, "scrape_success"),
			"Whether the last inventory scrape read every partition",
			nil, nil,
		),
		scrapeDuration: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, inventorySubsystem, "scrape_duration_seconds"),
			"Duration of the last inventory scrape",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *InventoryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.backups
	ch <- c.ranges
	ch <- c.latestBackupID
	ch <- c.scrapeSuccess
	ch <- c.scrapeDuration
}

// Collect implements prometheus.Collector. A partition that cannot be read is
// left out and scrape_success drops to 0.
func (c *InventoryCollector) Collect(ch chan<- prometheus.Metric) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), c.source.Timeout)
	defer cancel()

	ok := true
	partitions, err := c.source.Topology.Partitions(ctx)
	if err != nil {
		ok = false
	}
	for _, partition := range partitions {
		if err := c.collectPartition(ctx, partition, ch); err != nil {
			ok = false
		}
	}

	success := 0.0
	if ok {
		success = 1
	}
	ch <- prometheus.MustNewConstMetric(c.scrapeSuccess, prometheus.GaugeValue, success)
	ch <- prometheus.MustNewConstMetric(c.scrapeDuration, prometheus.GaugeValue, time.Since(start).Seconds())
}

func (c *InventoryCollector) collectPartition(ctx context.Context, partition int, ch chan<- prometheus.Metric) error {
	statuses, err := c.source.Store.List(ctx, backup.ForPartition(partition, backup.AnyCheckpoint()))
	if err != nil {
		return err
	}
	markers, err := c.source.Store.RangeMarkers(ctx, partition)
	if err != nil {
		return err
	}

	label := strconv.Itoa(partition)

	counts := map[backup.StatusCode]int{
		backup.StatusInProgress: 0,
		backup.StatusCompleted:  0,
		backup.StatusFailed:     0,
	}
	latest := int64(-1)
	for _, status := range statuses {
		counts[status.Code]++
		if status.IsCompleted() && status.ID.CheckpointID > latest {
			latest = status.ID.CheckpointID
		}
	}
	for code, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.backups, prometheus.GaugeValue, float64(n), label, code.String())
	}
	if latest >= 0 {
		ch <- prometheus.MustNewConstMetric(c.latestBackupID, prometheus.GaugeValue, float64(latest), label)
	}

	complete, incomplete := 0, 0
	for _, r := range backup.RangesFromMarkers(markers) {
		if _, isComplete := r.(backup.Complete); isComplete {
			complete++
		} else {
			incomplete++
		}
	}
	ch <- prometheus.MustNewConstMetric(c.ranges, prometheus.GaugeValue, float64(complete), label, "complete")
	ch <- prometheus.MustNewConstMetric(c.ranges, prometheus.GaugeValue, float64(incomplete), label, "incomplete")

	return nil
}
