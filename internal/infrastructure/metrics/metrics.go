package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/ohsms/internal/domain/entity"
)

// Metrics owns a private registry with the service collectors
type Metrics struct {
	registry         *prometheus.Registry
	actionsTotal     *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	eventsDispatched *prometheus.CounterVec
	reports          *prometheus.GaugeVec
	reportsByStage   *prometheus.GaugeVec
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ohsms",
			Name:      "workflow_actions_total",
			Help:      "Workflow actions by action and outcome",
		}, []string{"action", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ohsms",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ohsms",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		requestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ohsms",
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		}),
		eventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ohsms",
			Name:      "events_total",
			Help:      "Domain events seen by the dispatcher by type",
		}, []string{"type"}),
		reports: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ohsms",
			Name:      "reports",
			Help:      "Stored reports by state (open, closed, escalated)",
		}, []string{"state"}),
		reportsByStage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ohsms",
			Name:      "reports_by_stage",
			Help:      "Stored reports by current workflow stage",
		}, []string{"stage"}),
	}

	m.registry.MustRegister(
		m.actionsTotal,
		m.httpRequests,
		m.httpDuration,
		m.requestsInFlight,
		m.eventsDispatched,
		m.reports,
		m.reportsByStage,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveAction counts one workflow action outcome
func (m *Metrics) ObserveAction(action, outcome string) {
	m.actionsTotal.WithLabelValues(action, outcome).Inc()
}

// ObserveEvent counts a dispatched domain event
func (m *Metrics) ObserveEvent(eventType string) {
	m.eventsDispatched.WithLabelValues(eventType).Inc()
}

// SetBacklog replaces the report gauges with the given counts
func (m *Metrics) SetBacklog(summary *entity.ReportSummary) {
	m.reports.WithLabelValues("open").Set(float64(summary.Open))
	m.reports.WithLabelValues("closed").Set(float64(summary.Closed))
	m.reports.WithLabelValues("escalated").Set(float64(summary.Escalated))
	for stage, n := range summary.ByStage {
		m.reportsByStage.WithLabelValues(stage).Set(float64(n))
	}
}

// RequestStarted increments the in-flight gauge and returns a func that records the request
func (m *Metrics) RequestStarted() func(method, route string, status int) {
	start := time.Now()
	m.requestsInFlight.Inc()
	return func(method, route string, status int) {
		m.requestsInFlight.Dec()
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
