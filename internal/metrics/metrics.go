// Package metrics exposes Prometheus instrumentation for the controller.
//
// All collectors live on a private registry so that tests and multiple
// controllers in one process do not collide. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
)

const namespace = "gwsandbox"

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

// OutcomeOK labels successful operations.
const OutcomeOK = "ok"

// Metrics holds the controller's collectors.
type Metrics struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	environments      *prometheus.GaugeVec
	logDrops          *prometheus.CounterVec
	requests          *prometheus.CounterVec
	requestLatency    *prometheus.HistogramVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "operations_total",
			Help:      "Count of lifecycle operations by outcome",
		}, []string{"operation", "outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "operation_duration_seconds",
			Help:      "Latency distribution of lifecycle operations",
			Buckets:   histogramBuckets,
		}, []string{"operation"}),
		environments: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "environments",
			Help:      "Number of environments by status",
		}, []string{"status"}),
		logDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "logs",
			Name:      "dropped_lines_total",
			Help:      "Log lines dropped for slow consumers",
		}, []string{"environment"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.operations,
		m.operationDuration,
		m.environments,
		m.logDrops,
		m.requests,
		m.requestLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Outcome maps an operation error to its label value.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return string(errors.KindOf(err))
}

// ObserveOperation records one lifecycle operation.
func (m *Metrics) ObserveOperation(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, Outcome(err)).Inc()
	m.operationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// SetEnvironments replaces the environments-by-status gauge. Statuses
// missing from counts are set to zero.
func (m *Metrics) SetEnvironments(statuses []string, counts map[string]int) {
	if m == nil {
		return
	}
	for _, s := range statuses {
		m.environments.WithLabelValues(s).Set(float64(counts[s]))
	}
}

// LogLineDropped counts a line a slow log consumer missed.
func (m *Metrics) LogLineDropped(environment string) {
	if m == nil {
		return
	}
	m.logDrops.WithLabelValues(environment).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.requests.With(labels).Inc()
	m.requestLatency.With(labels).Observe(d.Seconds())
}
