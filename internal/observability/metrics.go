package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors exported by the service.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ErrorsTotal     *prometheus.CounterVec

	TicketsOpen       prometheus.Gauge
	TicketsInProgress prometheus.Gauge
	TicketsUnassigned prometheus.Gauge
	TicketsPerMinute  prometheus.Gauge

	SLARuns   prometheus.Counter
	SLAAlerts *prometheus.CounterVec

	SessionsActive prometheus.Gauge
}

// NewMetrics builds and registers all collectors on a private registry.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := func(c prometheus.Collector) {
		registry.MustRegister(c)
	}

	m := &Metrics{
		Registry: registry,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by path, method and status",
		}, []string{"path", "method", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Request errors by path, method and error code",
		}, []string{"path", "method", "code"}),
		TicketsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "open",
			Help:      "Tickets currently OPEN",
		}),
		TicketsInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "in_progress",
			Help:      "Tickets currently IN_PROGRESS",
		}),
		TicketsUnassigned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "unassigned_open",
			Help:      "OPEN tickets without an assigned helper",
		}),
		TicketsPerMinute: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "created_per_minute",
			Help:      "Ticket creation rate over the trailing hour",
		}),
		SLARuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "monitor_runs_total",
			Help:      "Completed SLA monitor runs",
		}),
		SLAAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "alerts_total",
			Help:      "Alerts emitted by the SLA monitor, labeled by type",
		}, []string{"type"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "sessions_active",
			Help:      "Live websocket sessions",
		}),
	}

	factory(m.RequestsTotal)
	factory(m.RequestDuration)
	factory(m.ErrorsTotal)
	factory(m.TicketsOpen)
	factory(m.TicketsInProgress)
	factory(m.TicketsUnassigned)
	factory(m.TicketsPerMinute)
	factory(m.SLARuns)
	factory(m.SLAAlerts)
	factory(m.SessionsActive)

	return m
}

// RecordRequest increments counters for a finished request.
func (m *Metrics) RecordRequest(path, method string, status int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(path, method).Observe(durationSeconds)
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(path, method, code).Inc()
}
