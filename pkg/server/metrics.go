package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// serverMetrics are exported on /metrics
type serverMetrics struct {
	sessions       prometheus.Gauge
	framesReceived *prometheus.CounterVec
	framesSent     *prometheus.CounterVec
	parseErrors    prometheus.Counter
	rateLimited    prometheus.Counter
}

func newServerMetrics(reg prometheus.Registerer) (*serverMetrics, error) {
	const namespace, subsystem = "realtime", "server"

	m := &serverMetrics{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions",
			Help:      "Open websocket sessions",
		}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_received_total",
			Help:      "Frames read from clients by event kind",
		}, []string{"kind"}),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_sent_total",
			Help:      "Frames written to clients by event kind",
		}, []string{"kind"}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "parse_errors_total",
			Help:      "Client messages that were not valid frames",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rate_limited_total",
			Help:      "Frames dropped by the per-user rate limit",
		}),
	}

	for _, c := range []prometheus.Collector{m.sessions, m.framesReceived, m.framesSent, m.parseErrors, m.rateLimited} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
