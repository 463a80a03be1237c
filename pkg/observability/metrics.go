package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the Prometheus metrics provider
type MetricsConfig struct {
	// Service identification
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Metric options
	Namespace        string    // Prometheus namespace (default: realtime)
	Subsystem        string    // Prometheus subsystem (default: client)
	HistogramBuckets []float64 // Latency buckets in milliseconds

	// Labels to add to all metrics
	ConstLabels prometheus.Labels

	// Registerer receives the collectors. Defaults to a fresh registry so
	// several clients in one process do not collide.
	Registerer prometheus.Registerer
}

// ClientMetrics receives measurements from a realtime client. All methods
// must be safe for concurrent use and must not block.
type ClientMetrics interface {
	// Connection lifecycle
	SetConnectionState(state string)
	IncConnectAttempts(result string)
	IncReconnects()

	// Frames on the wire, labelled by kind (app, ack, ping, pong)
	IncFramesSent(kind string)
	IncFramesReceived(kind string)
	IncParseErrors()

	// Outbound buffer
	SetQueueSize(n int)
	IncQueued()
	IncExpired()
	IncEvicted()

	// Acknowledgments
	SetPendingAcks(n int)
	ObserveAckLatency(d time.Duration)
	IncAckTimeouts()

	// Heartbeat
	ObserveHeartbeatRTT(d time.Duration)
	IncHeartbeatTimeouts()
}

// Known connection states, used to zero the state gauge
var connectionStates = []string{"connecting", "connected", "disconnected", "reconnecting", "error"}

// PrometheusMetrics implements ClientMetrics using Prometheus
type PrometheusMetrics struct {
	config   MetricsConfig
	gatherer prometheus.Gatherer

	connectionState *prometheus.GaugeVec
	connectAttempts *prometheus.CounterVec
	reconnects      prometheus.Counter

	framesSent     *prometheus.CounterVec
	framesReceived *prometheus.CounterVec
	parseErrors    prometheus.Counter

	queueSize prometheus.Gauge
	queued    prometheus.Counter
	expired   prometheus.Counter
	evicted   prometheus.Counter

	pendingAcks prometheus.Gauge
	ackLatency  prometheus.Histogram
	ackTimeouts prometheus.Counter

	heartbeatRTT      prometheus.Histogram
	heartbeatTimeouts prometheus.Counter
}

// NewPrometheusMetrics creates and registers the client collectors
func NewPrometheusMetrics(config MetricsConfig) (*PrometheusMetrics, error) {
	// Set defaults
	if config.Namespace == "" {
		config.Namespace = "realtime"
	}
	if config.Subsystem == "" {
		config.Subsystem = "client"
	}
	if config.HistogramBuckets == nil {
		config.HistogramBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}
	}
	if config.ConstLabels == nil {
		config.ConstLabels = prometheus.Labels{}
	}
	if config.ServiceName != "" {
		config.ConstLabels["service"] = config.ServiceName
	}
	if config.ServiceVersion != "" {
		config.ConstLabels["version"] = config.ServiceVersion
	}
	if config.Environment != "" {
		config.ConstLabels["environment"] = config.Environment
	}

	p := &PrometheusMetrics{config: config}
	if config.Registerer == nil {
		reg := prometheus.NewRegistry()
		p.config.Registerer = reg
		p.gatherer = reg
	} else if g, ok := config.Registerer.(prometheus.Gatherer); ok {
		p.gatherer = g
	}

	p.initializeMetrics()

	if err := p.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return p, nil
}

func (p *PrometheusMetrics) counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   p.config.Namespace,
		Subsystem:   p.config.Subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: p.config.ConstLabels,
	})
}

func (p *PrometheusMetrics) gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   p.config.Namespace,
		Subsystem:   p.config.Subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: p.config.ConstLabels,
	})
}

func (p *PrometheusMetrics) histogram(name, help string) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   p.config.Namespace,
		Subsystem:   p.config.Subsystem,
		Name:        name,
		Help:        help,
		Buckets:     p.config.HistogramBuckets,
		ConstLabels: p.config.ConstLabels,
	})
}

// initializeMetrics creates all metric collectors
func (p *PrometheusMetrics) initializeMetrics() {
	p.connectionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "connection_state",
			Help:        "Current connection state (1 for the active state)",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"state"},
	)

	p.connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "connect_attempts_total",
			Help:        "Connection attempts by result",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"result"},
	)
	p.reconnects = p.counter("reconnects_total", "Scheduled reconnection attempts")

	p.framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "frames_sent_total",
			Help:        "Frames written to the socket",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"kind"},
	)
	p.framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "frames_received_total",
			Help:        "Frames read from the socket",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"kind"},
	)
	p.parseErrors = p.counter("parse_errors_total", "Inbound messages that were not valid frames")

	p.queueSize = p.gauge("queue_size", "Frames waiting in the outbound buffer")
	p.queued = p.counter("queued_total", "Frames placed in the outbound buffer")
	p.expired = p.counter("expired_total", "Frames dropped because their expiry passed")
	p.evicted = p.counter("evicted_total", "Frames evicted from a full outbound buffer")

	p.pendingAcks = p.gauge("pending_acks", "Frames waiting for an acknowledgment")
	p.ackLatency = p.histogram("ack_latency_milliseconds", "Time from send to acknowledgment in milliseconds")
	p.ackTimeouts = p.counter("ack_timeouts_total", "Acknowledgments that did not arrive in time")

	p.heartbeatRTT = p.histogram("heartbeat_rtt_milliseconds", "Ping to pong round trip in milliseconds")
	p.heartbeatTimeouts = p.counter("heartbeat_timeouts_total", "Connections closed for missing pongs")
}

// registerMetrics registers all metrics with the configured registerer
func (p *PrometheusMetrics) registerMetrics() error {
	collectors := []prometheus.Collector{
		p.connectionState,
		p.connectAttempts,
		p.reconnects,
		p.framesSent,
		p.framesReceived,
		p.parseErrors,
		p.queueSize,
		p.queued,
		p.expired,
		p.evicted,
		p.pendingAcks,
		p.ackLatency,
		p.ackTimeouts,
		p.heartbeatRTT,
		p.heartbeatTimeouts,
	}

	for _, c := range collectors {
		if err := p.config.Registerer.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the collected metrics in the Prometheus text format
func (p *PrometheusMetrics) Handler() http.Handler {
	if p.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// SetConnectionState marks state as the only active state
func (p *PrometheusMetrics) SetConnectionState(state string) {
	for _, s := range connectionStates {
		p.connectionState.WithLabelValues(s).Set(0)
	}
	p.connectionState.WithLabelValues(state).Set(1)
}

func (p *PrometheusMetrics) IncConnectAttempts(result string) {
	p.connectAttempts.WithLabelValues(result).Inc()
}

func (p *PrometheusMetrics) IncReconnects() { p.reconnects.Inc() }

func (p *PrometheusMetrics) IncFramesSent(kind string) {
	p.framesSent.WithLabelValues(kind).Inc()
}

func (p *PrometheusMetrics) IncFramesReceived(kind string) {
	p.framesReceived.WithLabelValues(kind).Inc()
}

func (p *PrometheusMetrics) IncParseErrors() { p.parseErrors.Inc() }

func (p *PrometheusMetrics) SetQueueSize(n int) { p.queueSize.Set(float64(n)) }
func (p *PrometheusMetrics) IncQueued()         { p.queued.Inc() }
func (p *PrometheusMetrics) IncExpired()        { p.expired.Inc() }
func (p *PrometheusMetrics) IncEvicted()        { p.evicted.Inc() }

func (p *PrometheusMetrics) SetPendingAcks(n int) { p.pendingAcks.Set(float64(n)) }

func (p *PrometheusMetrics) ObserveAckLatency(d time.Duration) {
	p.ackLatency.Observe(float64(d.Milliseconds()))
}

func (p *PrometheusMetrics) IncAckTimeouts() { p.ackTimeouts.Inc() }

func (p *PrometheusMetrics) ObserveHeartbeatRTT(d time.Duration) {
	p.heartbeatRTT.Observe(float64(d.Milliseconds()))
}

func (p *PrometheusMetrics) IncHeartbeatTimeouts() { p.heartbeatTimeouts.Inc() }

// NoopMetrics discards every measurement
type NoopMetrics struct{}

func (NoopMetrics) SetConnectionState(string)         {}
func (NoopMetrics) IncConnectAttempts(string)         {}
func (NoopMetrics) IncReconnects()                    {}
func (NoopMetrics) IncFramesSent(string)              {}
func (NoopMetrics) IncFramesReceived(string)          {}
func (NoopMetrics) IncParseErrors()                   {}
func (NoopMetrics) SetQueueSize(int)                  {}
func (NoopMetrics) IncQueued()                        {}
func (NoopMetrics) IncExpired()                       {}
func (NoopMetrics) IncEvicted()                       {}
func (NoopMetrics) SetPendingAcks(int)                {}
func (NoopMetrics) ObserveAckLatency(time.Duration)   {}
func (NoopMetrics) IncAckTimeouts()                   {}
func (NoopMetrics) ObserveHeartbeatRTT(time.Duration) {}
func (NoopMetrics) IncHeartbeatTimeouts()             {}

var (
	_ ClientMetrics = (*PrometheusMetrics)(nil)
	_ ClientMetrics = NoopMetrics{}
)
