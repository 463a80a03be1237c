package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ExporterType selects where spans go
type ExporterType string

const (
	ExporterTypeOTLPGRPC ExporterType = "otlp-grpc"
	ExporterTypeOTLPHTTP ExporterType = "otlp-http"
	// ExporterTypeNoop records spans and drops them
	ExporterTypeNoop ExporterType = "noop"
)

// TracingConfig configures the OpenTelemetry pipeline of a client or backend
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	ExporterType ExporterType
	Endpoint     string
	Headers      map[string]string
	Insecure     bool

	// SampleRate applies to every event not listed below. Zero means 1.0.
	SampleRate float64
	// AlwaysSample and NeverSample override SampleRate per frame event
	AlwaysSample []string
	NeverSample  []string

	BatchTimeout time.Duration
}

// TracingProvider owns the SDK tracer provider and its exporter
type TracingProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracingProvider builds the exporter and installs the provider globally
func NewTracingProvider(config TracingConfig) (*TracingProvider, error) {
	config = config.withDefaults()

	exporter, err := newExporter(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
		semconv.DeploymentEnvironment(config.Environment),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(config.BatchTimeout)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(config)),
	)
	otel.SetTracerProvider(tp)

	return &TracingProvider{
		provider: tp,
		tracer:   tp.Tracer("github.com/sdkwork-cloud/openchat-realtime"),
	}, nil
}

func (c TracingConfig) withDefaults() TracingConfig {
	if c.ServiceName == "" {
		c.ServiceName = "openchat-realtime"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "unknown"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 5 * time.Second
	}
	return c
}

func newExporter(config TracingConfig) (sdktrace.SpanExporter, error) {
	switch config.ExporterType {
	case ExporterTypeOTLPGRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(config.Endpoint),
			otlptracegrpc.WithHeaders(config.Headers),
		}
		if config.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptrace.New(context.Background(), otlptracegrpc.NewClient(opts...))
	case ExporterTypeOTLPHTTP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(config.Endpoint),
			otlptracehttp.WithHeaders(config.Headers),
		}
		if config.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptrace.New(context.Background(), otlptracehttp.NewClient(opts...))
	case ExporterTypeNoop:
		return discardExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", config.ExporterType)
	}
}

// Tracer returns the tracer handed to clients and servers
func (tp *TracingProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// Shutdown flushes buffered spans
func (tp *TracingProvider) Shutdown(ctx context.Context) error {
	return tp.provider.Shutdown(ctx)
}

func newSampler(config TracingConfig) sdktrace.Sampler {
	if len(config.AlwaysSample) == 0 && len(config.NeverSample) == 0 {
		return ratioSampler(config.SampleRate)
	}
	s := &eventSampler{
		fallback: ratioSampler(config.SampleRate),
		rate:     config.SampleRate,
		override: make(map[string]sdktrace.SamplingDecision),
	}
	for _, e := range config.AlwaysSample {
		s.override[e] = sdktrace.RecordAndSample
	}
	for _, e := range config.NeverSample {
		s.override[e] = sdktrace.Drop
	}
	return s
}

func ratioSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// eventSampler decides by the realtime.event attribute, so pings can be
// dropped while application events are always kept
type eventSampler struct {
	fallback sdktrace.Sampler
	rate     float64
	override map[string]sdktrace.SamplingDecision
}

func (s *eventSampler) ShouldSample(params sdktrace.SamplingParameters) sdktrace.SamplingResult {
	for _, attr := range params.Attributes {
		if attr.Key != AttrEvent {
			continue
		}
		if d, ok := s.override[attr.Value.AsString()]; ok {
			return sdktrace.SamplingResult{
				Decision:   d,
				Tracestate: trace.SpanContextFromContext(params.ParentContext).TraceState(),
			}
		}
		break
	}
	return s.fallback.ShouldSample(params)
}

func (s *eventSampler) Description() string {
	return fmt.Sprintf("EventSampler{rate=%.2f}", s.rate)
}

type discardExporter struct{}

func (discardExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (discardExporter) Shutdown(context.Context) error                          { return nil }

// eventAttrs labels a span with the frame it covers
func eventAttrs(event, messageID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{AttrEvent.String(event)}
	if messageID != "" {
		attrs = append(attrs, AttrMessageID.String(messageID))
	}
	return attrs
}

// StartFrameSpan opens a producer span for one outbound frame. name is
// SpanSend for a socket write or SpanAckRoundTrip for the wait on its ack.
func StartFrameSpan(tracer trace.Tracer, name, event, messageID string) trace.Span {
	_, span := tracer.Start(context.Background(), name,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(eventAttrs(event, messageID)...),
	)
	return span
}

// EndSpan closes span, marking it failed when err is set
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(AttrErrorType.String(ErrorType(err)))
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
