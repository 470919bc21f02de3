package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/backstop/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.TracingConfig
		wantErr bool
		enabled bool
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name:   "disabled",
			config: &config.TracingConfig{ServiceName: "backstop"},
		},
		{
			name: "enabled otlp",
			config: &config.TracingConfig{
				Enabled:     true,
				Endpoint:    "localhost:4317",
				ServiceName: "backstop",
				SampleRatio: 0.5,
				Insecure:    true,
				Timeout:     time.Second,
			},
			enabled: true,
		},
		{
			name: "invalid ratio",
			config: &config.TracingConfig{
				Enabled:     true,
				Endpoint:    "localhost:4317",
				ServiceName: "backstop",
				SampleRatio: 1.5,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = tracer.Shutdown(ctx)
			}()

			if tracer.Enabled() != tt.enabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.enabled)
			}
		})
	}
}

func TestTracer_Disabled(t *testing.T) {
	tracer, err := New(&config.TracingConfig{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, span := tracer.Start(context.Background(), "noop")
	defer span.End()

	if span.SpanContext().IsValid() {
		t.Error("disabled tracer should produce invalid span contexts")
	}
	if TraceID(ctx) != "" {
		t.Errorf("TraceID() = %q, want empty", TraceID(ctx))
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestTracer_ExportsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := New(&config.TracingConfig{
		Enabled:     true,
		ServiceName: "backstop-test",
		SampleRatio: 1.0,
	}, WithExporter(exporter), WithServiceVersion("v0.0.0-test"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, parent := tracer.Start(context.Background(), "restore.Resolve")
	if TraceID(ctx) == "" {
		t.Error("TraceID() empty inside a sampled span")
	}
	_, child := tracer.Start(ctx, "restore.partition")
	child.SetAttributes(AttrPartition.Int(2))
	SetError(child, errors.New("no safe start"))
	SetStatus(child, errors.New("no safe start"))
	child.End()
	SetStatus(parent, nil)
	parent.End()

	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}

	byName := map[string]tracetest.SpanStub{}
	for _, s := range spans {
		byName[s.Name] = s
	}

	child2 := byName["restore.partition"]
	if child2.Parent.SpanID() != byName["restore.Resolve"].SpanContext.SpanID() {
		t.Error("child span is not parented to restore.Resolve")
	}
	if child2.Status.Code != codes.Error {
		t.Errorf("child status = %v, want Error", child2.Status.Code)
	}
	if len(child2.Events) != 1 || child2.Events[0].Name != "exception" {
		t.Errorf("child events = %+v, want one exception", child2.Events)
	}
	var partition int64 = -1
	for _, kv := range child2.Attributes {
		if kv.Key == AttrPartition {
			partition = kv.Value.AsInt64()
		}
	}
	if partition != 2 {
		t.Errorf("partition attribute = %d, want 2", partition)
	}
	if byName["restore.Resolve"].Status.Code != codes.Ok {
		t.Errorf("parent status = %v, want Ok", byName["restore.Resolve"].Status.Code)
	}
}

func TestSetError_Nil(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	_, span := provider.Tracer("test").Start(context.Background(), "op")
	SetError(span, nil)
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported %d spans, want 1", len(spans))
	}
	if len(spans[0].Attributes) != 0 || len(spans[0].Events) != 0 {
		t.Errorf("SetError(nil) modified the span: %+v", spans[0])
	}
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		ratio   float64
		wantErr bool
		desc    string
	}{
		{ratio: 1, desc: "ParentBased{root:AlwaysOnSampler"},
		{ratio: 0, desc: "ParentBased{root:AlwaysOffSampler"},
		{ratio: 0.25, desc: "ParentBased{root:TraceIDRatioBased{0.25}"},
		{ratio: -0.1, wantErr: true},
		{ratio: 2, wantErr: true},
	}

	for _, tt := range tests {
		sampler, err := newSampler(tt.ratio)
		if (err != nil) != tt.wantErr {
			t.Errorf("newSampler(%v) error = %v, wantErr %v", tt.ratio, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if got := sampler.Description(); len(got) < len(tt.desc) || got[:len(tt.desc)] != tt.desc {
			t.Errorf("newSampler(%v).Description() = %q, want prefix %q", tt.ratio, got, tt.desc)
		}
	}
}
