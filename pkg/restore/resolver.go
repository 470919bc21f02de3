package restore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"mercator-hq/backstop/pkg/backup"
	"mercator-hq/backstop/pkg/telemetry/logging"
	"mercator-hq/backstop/pkg/telemetry/tracing"
)

const tracerName = "mercator-hq/backstop/pkg/restore"

// Config contains configuration for the resolver.
type Config struct {
	// Parallelism bounds the number of partitions resolved concurrently.
	// 0 means no limit.
	Parallelism int
}

// DefaultConfig returns the default resolver configuration.
func DefaultConfig() *Config {
	return &Config{Parallelism: 8}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Parallelism < 0 {
		return fmt.Errorf("restore parallelism must be >= 0, got %d", c.Parallelism)
	}
	return nil
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithIDGenerator sets the generator used to render the time span of backup
// ranges in errors.
func WithIDGenerator(gen backup.CheckpointIDGenerator) Option {
	return func(r *Resolver) {
		r.gen = gen
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger.With("component", "restore")
	}
}

// WithMetrics sets the metrics resolutions are recorded in. By default they
// are recorded in unregistered collectors.
func WithMetrics(m *Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// Resolver builds restore plans from the backups and range markers in a store.
type Resolver struct {
	store   backup.Store
	config  *Config
	logger  *slog.Logger
	gen     backup.CheckpointIDGenerator
	metrics *Metrics
	tracer  trace.Tracer
}

// NewResolver creates a new resolver.
func NewResolver(store backup.Store, config *Config, opts ...Option) (*Resolver, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	resolver := &Resolver{
		store:   store,
		config:  config,
		logger:  slog.Default().With("component", "restore"),
		metrics: NewMetrics("backstop", nil),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(resolver)
	}
	return resolver, nil
}

// Resolve selects, for partitions 1 through partitionCount, the backups to
// restore so that every partition ends at the same global checkpoint within
// the window, and no partition restores from a checkpoint past what its
// exporter has acknowledged in positions.
//
// Resolution fails as a whole when any partition fails. The returned error
// is one of *MissingPositionError, *NoCoveringRangeError, *NoSafeStartError,
// ErrNoCommonCheckpoint, *ConsistencyError, or a store error.
func (r *Resolver) Resolve(ctx context.Context, window Window, partitionCount int, positions map[int]int64) (*GlobalRestoreInfo, error) {
	started := time.Now()
	planID := uuid.NewString()

	ctx = logging.WithPlanID(ctx, planID)
	ctx, span := r.tracer.Start(ctx, "restore.Resolve", trace.WithAttributes(
		tracing.AttrPlanID.String(planID),
		tracing.AttrWindow.String(window.String()),
		tracing.AttrPartitionCount.Int(partitionCount),
	))
	defer span.End()

	logger := logging.FromContext(ctx, r.logger)

	info, err := r.resolve(ctx, planID, window, partitionCount, positions)
	elapsed := time.Since(started)
	r.metrics.observe(outcomeOf(err), elapsed)

	if err != nil {
		tracing.SetError(span, err)
		tracing.SetStatus(span, err)
		logger.Warn("restore plan resolution failed", "window", window.String(), "error", err, "duration", elapsed)
		return nil, err
	}

	span.SetAttributes(tracing.AttrGlobalCheckpointID.Int64(info.GlobalCheckpointID))
	tracing.SetStatus(span, nil)
	logger.Info("restore plan resolved",
		"window", window.String(),
		"global_checkpoint_id", info.GlobalCheckpointID,
		"partitions", len(info.Partitions),
		"duration", elapsed,
	)
	return info, nil
}

func (r *Resolver) resolve(ctx context.Context, planID string, window Window, partitionCount int, positions map[int]int64) (*GlobalRestoreInfo, error) {
	if partitionCount < 1 {
		return nil, fmt.Errorf("partition count must be >= 1, got %d", partitionCount)
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	var missing []int
	for partition := 1; partition <= partitionCount; partition++ {
		if _, ok := positions[partition]; !ok {
			missing = append(missing, partition)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingPositionError{Partitions: missing}
	}

	partitions := make([]PartitionRestoreInfo, partitionCount)

	g, gctx := errgroup.WithContext(ctx)
	if r.config.Parallelism > 0 {
		g.SetLimit(r.config.Parallelism)
	}
	for partition := 1; partition <= partitionCount; partition++ {
		g.Go(func() error {
			info, err := r.resolvePartition(gctx, partition, window, positions[partition])
			if err != nil {
				return err
			}
			partitions[partition-1] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	global, err := ComputeGlobalCheckpointID(partitions)
	if err != nil {
		return nil, err
	}

	if err := ValidatePartitions(partitions, global); err != nil {
		return nil, err
	}

	return &GlobalRestoreInfo{
		PlanID:             planID,
		GlobalCheckpointID: global,
		Partitions:         partitions,
		BackupIDs:          BackupIDsByPartition(partitions),
	}, nil
}

// IsPlanError reports whether err means the backups cannot satisfy the
// request, as opposed to a failure reaching the store.
func IsPlanError(err error) bool {
	if err == nil {
		return false
	}
	return outcomeOf(err) != OutcomeError || errors.Is(err, ErrInvalidWindow)
}

// PartitionIDs returns the partitions of the plan in ascending order.
func (g *GlobalRestoreInfo) PartitionIDs() []int {
	ids := make([]int, 0, len(g.Partitions))
	for _, p := range g.Partitions {
		ids = append(ids, p.Partition)
	}
	slices.Sort(ids)
	return ids
}
