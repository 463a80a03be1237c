// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for realtime clients and servers.
//
// A client reports through the ClientMetrics interface. PrometheusMetrics
// registers its collectors on a private registry unless one is supplied, so
// several clients can live in one process:
//
//	metrics, err := observability.NewPrometheusMetrics(observability.MetricsConfig{
//		ServiceName: "chat-web",
//	})
//	http.Handle("/metrics", metrics.Handler())
//
// TracingProvider configures an OTLP exporter and hands out the tracer used
// for dial and acknowledgment spans.
package observability
