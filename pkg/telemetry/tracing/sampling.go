package tracing

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// newSampler maps a sample ratio to a sampler. A ratio of 1 samples
// everything and 0 samples nothing; anything between samples by trace ID
// hash so every span of a trace shares one decision.
//
// The result is wrapped in ParentBased, so a span with a parent follows the
// parent's decision:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sample_ratio: 0.1
func newSampler(ratio float64) (sdktrace.Sampler, error) {
	var base sdktrace.Sampler
	switch {
	case ratio < 0 || ratio > 1:
		return nil, fmt.Errorf("sample ratio must be between 0.0 and 1.0, got %f", ratio)
	case ratio == 1:
		base = sdktrace.AlwaysSample()
	case ratio == 0:
		base = sdktrace.NeverSample()
	default:
		base = sdktrace.TraceIDRatioBased(ratio)
	}
	return sdktrace.ParentBased(base), nil
}
