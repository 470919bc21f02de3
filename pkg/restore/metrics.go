package restore

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded by the resolution counter.
const (
	OutcomeSuccess            = "success"
	OutcomeMissingPosition    = "missing_position"
	OutcomeNoCoveringRange    = "no_covering_range"
	OutcomeNoSafeStart        = "no_safe_start"
	OutcomeNoCommonCheckpoint = "no_common_checkpoint"
	OutcomeInconsistent       = "inconsistent"
	OutcomeError              = "error"
)

// Metrics contains Prometheus metrics for restore resolution.
type Metrics struct {
	resolutions *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewMetrics creates the resolver metrics and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "restore",
				Name:      "resolutions_total",
				Help:      "Total number of restore plan resolutions by outcome",
			},
			[]string{"outcome"},
		),

		duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "restore",
				Name:      "resolution_duration_seconds",
				Help:      "Duration of restore plan resolution in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to 8s
			},
		),
	}
}

func (m *Metrics) observe(outcome string, elapsed time.Duration) {
	m.resolutions.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// outcomeOf classifies a resolution error.
func outcomeOf(err error) string {
	var (
		missing      *MissingPositionError
		noRange      *NoCoveringRangeError
		noSafeStart  *NoSafeStartError
		inconsistent *ConsistencyError
	)
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &missing):
		return OutcomeMissingPosition
	case errors.As(err, &noRange):
		return OutcomeNoCoveringRange
	case errors.As(err, &noSafeStart):
		return OutcomeNoSafeStart
	case errors.Is(err, ErrNoCommonCheckpoint):
		return OutcomeNoCommonCheckpoint
	case errors.As(err, &inconsistent):
		return OutcomeInconsistent
	default:
		return OutcomeError
	}
}
