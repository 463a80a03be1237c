// Package telemetry sets up logging, tracing and profiling for the command
// line tools.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grafana/pyroscope-go"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/sdkwork-cloud/openchat-realtime/pkg/logging"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/observability"
)

// Options are the telemetry flags shared by every command
type Options struct {
	LogLevel  string
	LogFormat string

	TraceExporter string
	TraceEndpoint string
	TraceInsecure bool
	SampleRate    float64

	ProfileServer string
}

// AddFlags registers the options on fs
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.StringVar(&o.LogFormat, "log-format", "text", "log format (text, json)")
	fs.StringVar(&o.TraceExporter, "trace-exporter", "", "trace exporter (otlp-grpc, otlp-http); empty disables tracing")
	fs.StringVar(&o.TraceEndpoint, "trace-endpoint", "localhost:4317", "OTLP collector endpoint")
	fs.BoolVar(&o.TraceInsecure, "trace-insecure", true, "connect to the collector without TLS")
	fs.Float64Var(&o.SampleRate, "trace-sample-rate", 1, "fraction of traces to sample")
	fs.StringVar(&o.ProfileServer, "pyroscope", "", "pyroscope server address; empty disables profiling")
}

// NewLogger builds the logger described by the options
func (o *Options) NewLogger(w io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(o.LogLevel)
	if err != nil {
		return nil, err
	}

	var formatter logging.Formatter
	switch strings.ToLower(o.LogFormat) {
	case "", "text":
		formatter = logging.NewTextFormatter()
	case "json":
		formatter = logging.NewJSONFormatter()
	default:
		return nil, fmt.Errorf("unknown log format %q", o.LogFormat)
	}

	logger := logging.New(w, formatter)
	logger.SetLevel(level)
	return logger, nil
}

// Setup holds what Start created. Shutdown releases it.
type Setup struct {
	Tracer trace.Tracer

	tracing  *observability.TracingProvider
	profiler *pyroscope.Profiler
}

// Start enables tracing and profiling when configured
func (o *Options) Start(service, version string, logger logging.Logger) (*Setup, error) {
	s := &Setup{Tracer: noop.NewTracerProvider().Tracer(service)}

	if o.TraceExporter != "" {
		tp, err := observability.NewTracingProvider(observability.TracingConfig{
			ServiceName:    service,
			ServiceVersion: version,
			ExporterType:   observability.ExporterType(o.TraceExporter),
			Endpoint:       o.TraceEndpoint,
			Insecure:       o.TraceInsecure,
			SampleRate:     o.SampleRate,
		})
		if err != nil {
			return nil, fmt.Errorf("start tracing: %w", err)
		}
		s.tracing = tp
		s.Tracer = tp.Tracer()
		logger.Info("tracing enabled",
			logging.String("exporter", o.TraceExporter),
			logging.String("endpoint", o.TraceEndpoint))
	}

	if o.ProfileServer != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: service,
			ServerAddress:   o.ProfileServer,
			Tags:            map[string]string{"version": version},
			Logger:          pyroscopeLogger{logger.WithFields(logging.Component("pyroscope"))},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
				pyroscope.ProfileGoroutines,
			},
		})
		if err != nil {
			_ = s.Shutdown(context.Background())
			return nil, fmt.Errorf("start profiler: %w", err)
		}
		s.profiler = profiler
		logger.Info("profiling enabled", logging.String("server", o.ProfileServer))
	}

	return s, nil
}

// Shutdown flushes pending spans and stops the profiler
func (s *Setup) Shutdown(ctx context.Context) error {
	var first error
	if s.profiler != nil {
		if err := s.profiler.Stop(); err != nil {
			first = err
		}
	}
	if s.tracing != nil {
		if err := s.tracing.Shutdown(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// pyroscopeLogger adapts a structured logger to pyroscope's printf logger
type pyroscopeLogger struct {
	logger logging.Logger
}

func (l pyroscopeLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l pyroscopeLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l pyroscopeLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}
