// Package tracing configures OpenTelemetry tracing for backstop.
//
// New builds a tracer provider that exports over OTLP gRPC and installs it
// globally, together with the W3C trace context propagator. Retention rounds
// and restore resolutions start their spans from otel.Tracer, so they are
// traced whenever a provider is installed and cost a noop span otherwise.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
// Spans record failures with SetError and SetStatus:
//
//	ctx, span := otel.Tracer(name).Start(ctx, "restore.partition",
//	    trace.WithAttributes(tracing.AttrPartition.Int(p)))
//	defer span.End()
//	if err != nil {
//	    tracing.SetError(span, err)
//	    tracing.SetStatus(span, err)
//	}
//
// # Sampling
//
// telemetry.tracing.sample_ratio selects the root sampler: 1.0 samples every
// trace, 0 none, and values in between sample by trace ID. Child spans follow
// their parent's decision.
package tracing
