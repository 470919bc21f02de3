package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"mercator-hq/backstop/pkg/backup"
	"mercator-hq/backstop/pkg/cluster"
	"mercator-hq/backstop/pkg/telemetry/logging"
	"mercator-hq/backstop/pkg/telemetry/tracing"
)

const tracerName = "mercator-hq/backstop/pkg/backup/retention"

// Config contains configuration for the retention pruner.
type Config struct {
	// Window is how far back from the newest completed backup backups are
	// kept. Older backups are deleted, except the newest completed one.
	Window time.Duration

	// Schedule is a cron expression or "@every <duration>" descriptor.
	// Empty disables scheduled pruning.
	Schedule string

	// Parallelism bounds the number of partitions pruned concurrently.
	// 0 means no limit.
	Parallelism int

	// DryRun computes decisions without changing the store.
	DryRun bool
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		Window:      7 * 24 * time.Hour,
		Schedule:    "@every 5m",
		Parallelism: 4,
		DryRun:      false,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("retention window must be positive, got %s", c.Window)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("retention parallelism must be >= 0, got %d", c.Parallelism)
	}
	return nil
}

// Option configures a Pruner.
type Option func(*Pruner)

// WithRegisterer sets the registerer the gauges are registered with on Start.
// Defaults to prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Pruner) {
		p.registerer = reg
	}
}

// WithMetricsNamespace sets the namespace and subsystem of the gauges.
func WithMetricsNamespace(namespace, subsystem string) Option {
	return func(p *Pruner) {
		p.metrics = NewMetrics(namespace, subsystem)
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pruner) {
		p.clock = now
	}
}

// WithIDGenerator sets the generator used to derive a timestamp from the
// checkpoint id of backups that carry no timestamp.
func WithIDGenerator(gen backup.CheckpointIDGenerator) Option {
	return func(p *Pruner) {
		p.gen = gen
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pruner) {
		p.logger = logger.With("component", "backup.retention")
	}
}

// Pruner deletes backups that fell out of the retention window and moves the
// range markers of each partition along with them.
type Pruner struct {
	store      backup.Store
	topology   cluster.Topology
	config     *Config
	logger     *slog.Logger
	clock      func() time.Time
	gen        backup.CheckpointIDGenerator
	registerer prometheus.Registerer
	metrics    *Metrics
	tracer     trace.Tracer
	scheduler  *Scheduler

	mu      sync.Mutex
	stopped chan struct{}
}

// NewPruner creates a new retention pruner.
func NewPruner(store backup.Store, topology cluster.Topology, config *Config, opts ...Option) (*Pruner, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	pruner := &Pruner{
		store:      store,
		topology:   topology,
		config:     config,
		logger:     slog.Default().With("component", "backup.retention"),
		clock:      time.Now,
		registerer: prometheus.DefaultRegisterer,
		metrics:    NewMetrics("backstop", "retention"),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(pruner)
	}

	pruner.scheduler = NewScheduler(pruner)

	return pruner, nil
}

// Report describes one retention round.
type Report struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	Duration   time.Duration     `json:"duration"`
	DryRun     bool              `json:"dry_run"`
	Partitions []PartitionReport `json:"partitions"`
}

// DeletedBackups returns the number of backups deleted across partitions.
func (r *Report) DeletedBackups() int {
	total := 0
	for _, partition := range r.Partitions {
		total += len(partition.DeletedBackups)
	}
	return total
}

// Failed returns the partitions that reported an error.
func (r *Report) Failed() []PartitionReport {
	var failed []PartitionReport
	for _, partition := range r.Partitions {
		if partition.Err != nil {
			failed = append(failed, partition)
		}
	}
	return failed
}

// PartitionReport describes the round of one partition. In a dry run the
// lists hold what would have been changed.
type PartitionReport struct {
	Partition        int                  `json:"partition"`
	Cutoff           time.Time            `json:"cutoff,omitzero"`
	DeletedBackups   []backup.Identifier  `json:"deleted_backups,omitempty"`
	StoredMarker     *backup.RangeMarker  `json:"stored_marker,omitempty"`
	DeletedMarkers   []backup.RangeMarker `json:"deleted_markers,omitempty"`
	EarliestBackupID *int64               `json:"earliest_backup_id,omitempty"`
	Error            string               `json:"error,omitempty"`

	Err error `json:"-"`
}

func (r *PartitionReport) setErr(err error) {
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
}

// Prune runs one retention round over every partition of the topology.
// Failures are isolated per partition and recorded in the report; an error
// is returned only when the partitions cannot be determined.
func (p *Pruner) Prune(ctx context.Context) (*Report, error) {
	return p.run(ctx, !p.config.DryRun)
}

// Plan computes the decisions of a retention round without applying them.
func (p *Pruner) Plan(ctx context.Context) (*Report, error) {
	return p.run(ctx, false)
}

func (p *Pruner) run(ctx context.Context, apply bool) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: p.clock(),
		DryRun:    !apply,
	}

	ctx = logging.WithRunID(ctx, report.RunID)
	ctx, span := p.tracer.Start(ctx, "retention.Prune", trace.WithAttributes(
		tracing.AttrRunID.String(report.RunID),
		tracing.AttrDryRun.Bool(report.DryRun),
	))
	defer span.End()

	logger := logging.FromContext(ctx, p.logger)

	partitions, err := p.topology.Partitions(ctx)
	if err != nil {
		err = fmt.Errorf("failed to get partitions: %w", err)
		tracing.SetError(span, err)
		tracing.SetStatus(span, err)
		logger.Error("retention round aborted", "error", err)
		return nil, err
	}

	report.Partitions = make([]PartitionReport, len(partitions))

	var g errgroup.Group
	if p.config.Parallelism > 0 {
		g.SetLimit(p.config.Parallelism)
	}
	for i, partition := range partitions {
		g.Go(func() error {
			report.Partitions[i] = p.prunePartition(ctx, partition, report.StartedAt, apply)
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = p.clock().Sub(report.StartedAt)

	failed := len(report.Failed())
	span.SetAttributes(
		tracing.AttrPartitions.Int(len(partitions)),
		tracing.AttrPartitionsFailed.Int(failed),
		tracing.AttrBackupsDeleted.Int(report.DeletedBackups()),
	)
	tracing.SetStatus(span, nil)

	logger.Info("retention round completed",
		"partitions", len(partitions),
		"failed_partitions", failed,
		"deleted_backups", report.DeletedBackups(),
		"dry_run", report.DryRun,
		"duration", report.Duration,
	)

	return report, nil
}

func (p *Pruner) prunePartition(ctx context.Context, partition int, now time.Time, apply bool) PartitionReport {
	ctx = logging.WithPartition(ctx, partition)
	ctx, span := p.tracer.Start(ctx, "retention.partition", trace.WithAttributes(
		tracing.AttrPartition.Int(partition),
	))
	defer span.End()

	logger := logging.FromContext(ctx, p.logger)
	report := PartitionReport{Partition: partition}

	fail := func(err error) PartitionReport {
		tracing.SetError(span, err)
		tracing.SetStatus(span, err)
		logger.Warn("skipping partition this round", "error", err)
		report.setErr(err)
		return report
	}

	statuses, err := p.store.List(ctx, backup.ForPartition(partition, backup.AnyCheckpoint()))
	if err != nil {
		return fail(fmt.Errorf("failed to list backups: %w", err))
	}
	markers, err := p.store.RangeMarkers(ctx, partition)
	if err != nil {
		return fail(fmt.Errorf("failed to list range markers: %w", err))
	}

	plan := planPartition(partition, statuses, markers, now, p.config.Window, p.gen)
	report.Cutoff = plan.Cutoff
	if plan.Latest != nil {
		earliest := plan.NewStart
		report.EarliestBackupID = &earliest
	}

	logger.Debug("retention plan computed",
		"backups", len(statuses),
		"markers", len(markers),
		"cutoff", plan.Cutoff,
		"delete", len(plan.Delete),
		"delete_markers", len(plan.DeleteMarkers),
	)

	if !apply {
		for _, status := range plan.Delete {
			report.DeletedBackups = append(report.DeletedBackups, status.ID)
		}
		report.StoredMarker = plan.StoreMarker
		report.DeletedMarkers = plan.DeleteMarkers
		return report
	}

	var errs []error
	for _, status := range plan.Delete {
		if err := p.store.Delete(ctx, status.ID); err != nil {
			logger.Warn("failed to delete backup", "backup", status.ID.String(), "error", err)
			errs = append(errs, fmt.Errorf("failed to delete backup %s: %w", status.ID, err))
			continue
		}
		report.DeletedBackups = append(report.DeletedBackups, status.ID)
	}

	if err := p.moveMarkers(ctx, logger, plan, &report); err != nil {
		errs = append(errs, err)
	}

	p.metrics.recordPartition(&report)

	if err := errors.Join(errs...); err != nil {
		return fail(err)
	}

	if len(report.DeletedBackups) > 0 || len(report.DeletedMarkers) > 0 {
		logger.Info("partition pruned",
			"deleted_backups", len(report.DeletedBackups),
			"deleted_markers", len(report.DeletedMarkers),
			"earliest_backup_id", plan.NewStart,
		)
	}
	tracing.SetStatus(span, nil)
	return report
}

// moveMarkers stores the new Start marker and then removes the markers
// preceding it. Nothing is removed when the new marker cannot be stored.
func (p *Pruner) moveMarkers(ctx context.Context, logger *slog.Logger, plan PartitionPlan, report *PartitionReport) error {
	if plan.StoreMarker != nil {
		if err := p.store.StoreRangeMarker(ctx, plan.Partition, *plan.StoreMarker); err != nil {
			return fmt.Errorf("failed to store range marker %s: %w", plan.StoreMarker, err)
		}
		report.StoredMarker = plan.StoreMarker
	}

	var errs []error
	for _, marker := range plan.DeleteMarkers {
		if err := p.store.DeleteRangeMarker(ctx, plan.Partition, marker); err != nil {
			logger.Warn("failed to delete range marker", "marker", marker.String(), "error", err)
			errs = append(errs, fmt.Errorf("failed to delete range marker %s: %w", marker, err))
			continue
		}
		report.DeletedMarkers = append(report.DeletedMarkers, marker)
	}
	return errors.Join(errs...)
}

// Start registers the retention gauges and starts scheduled pruning. The
// pruner stops, and its gauges are unregistered, when ctx is canceled or
// Stop is called.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped != nil {
		return nil
	}

	if err := p.metrics.Register(p.registerer); err != nil {
		return fmt.Errorf("failed to register retention metrics: %w", err)
	}
	if err := p.scheduler.Start(ctx); err != nil {
		p.metrics.Unregister()
		return err
	}
	p.metrics.recordNext(p.scheduler.NextRun())

	stopped := make(chan struct{})
	p.stopped = stopped
	go func() {
		select {
		case <-ctx.Done():
			p.Stop()
		case <-stopped:
		}
	}()
	return nil
}

// Stop stops scheduled pruning, waits for a running round and unregisters
// the gauges.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped != nil {
		close(p.stopped)
		p.stopped = nil
	}
	p.scheduler.Stop()
	p.metrics.Unregister()
}

// NextPruning returns the next scheduled pruning time, or nil when pruning
// is not scheduled.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}

// Metrics returns the retention gauges.
func (p *Pruner) Metrics() *Metrics {
	return p.metrics
}
