package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	rterrors "github.com/sdkwork-cloud/openchat-realtime/pkg/errors"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/transport"
)

// Span and attribute names shared by the instrumented components
const (
	SpanDial         = "realtime.dial"
	SpanSend         = "realtime.send"
	SpanAckRoundTrip = "realtime.ack"

	AttrEndpoint  = attribute.Key("realtime.endpoint")
	AttrEvent     = attribute.Key("realtime.event")
	AttrMessageID = attribute.Key("realtime.message_id")
	AttrAttempt   = attribute.Key("realtime.attempt")
	AttrErrorType = attribute.Key("realtime.error_type")
)

// instrumentedDialer wraps a Dialer with a span and connect metrics
type instrumentedDialer struct {
	next    transport.Dialer
	tracer  trace.Tracer
	metrics ClientMetrics
}

// InstrumentDialer returns a Dialer that records a span and a connect
// attempt metric around every dial. A nil tracer or metrics disables that
// half of the instrumentation.
func InstrumentDialer(next transport.Dialer, tracer trace.Tracer, metrics ClientMetrics) transport.Dialer {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &instrumentedDialer{next: next, tracer: tracer, metrics: metrics}
}

// Dial implements transport.Dialer
func (d *instrumentedDialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	ctx, span := d.tracer.Start(ctx, SpanDial,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(AttrEndpoint.String(transport.RedactURL(url))),
	)
	defer span.End()

	start := time.Now()
	conn, err := d.next.Dial(ctx, url)
	span.SetAttributes(attribute.Float64("realtime.dial_ms", float64(time.Since(start).Milliseconds())))

	if err != nil {
		kind := ErrorType(err)
		span.SetAttributes(AttrErrorType.String(kind))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.metrics.IncConnectAttempts(kind)
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	d.metrics.IncConnectAttempts("success")
	return conn, nil
}

// ErrorType categorizes errors for metric labels
func ErrorType(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}

	if e, ok := rterrors.As(err); ok {
		switch e.Code() {
		case rterrors.CodeConnectionTimeout, rterrors.CodeAckTimeout, rterrors.CodeHeartbeatTimeout:
			return "timeout"
		case rterrors.CodeUnauthorized, rterrors.CodeInvalidToken:
			return "unauthorized"
		case rterrors.CodeConnectionFailed, rterrors.CodeConnectionLost, rterrors.CodeTransportError:
			return "connection"
		}
		return string(e.Category())
	}
	return "unknown"
}
