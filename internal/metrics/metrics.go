package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "arogyasahay"

// Metrics holds the application's Prometheus collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	activeSessions prometheus.Gauge
	dosesTaken     prometheus.Counter
	dosesMissed    prometheus.Counter
	purchases      *prometheus.CounterVec
	vitalsLogged   prometheus.Counter
	saveFailures   prometheus.Counter
	reports        *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "adherence",
			Name:      "active_sessions",
			Help:      "Number of unlocked profiles with a running sweeper.",
		}),
		dosesTaken: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "adherence",
			Name:      "doses_taken_total",
			Help:      "Total number of doses confirmed as taken.",
		}),
		dosesMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "adherence",
			Name:      "doses_missed_total",
			Help:      "Total number of doses flagged as missed by sweeps.",
		}),
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rewards",
			Name:      "purchases_total",
			Help:      "Reward purchase attempts by outcome.",
		}, []string{"outcome"}),
		vitalsLogged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "adherence",
			Name:      "vitals_logged_total",
			Help:      "Total number of vital readings stored.",
		}),
		saveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "save_failures_total",
			Help:      "Total number of failed profile saves.",
		}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reports",
			Name:      "generated_total",
			Help:      "Monthly report generations by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.activeSessions,
		m.dosesTaken,
		m.dosesMissed,
		m.purchases,
		m.vitalsLogged,
		m.saveFailures,
		m.reports,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncInFlight() { m.httpInFlight.Inc() }
func (m *Metrics) DecInFlight() { m.httpInFlight.Dec() }

// ObserveRequest records one finished HTTP request
func (m *Metrics) ObserveRequest(method, path, status string, d time.Duration) {
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *Metrics) SessionOpened() { m.activeSessions.Inc() }
func (m *Metrics) SessionClosed() { m.activeSessions.Dec() }

func (m *Metrics) DoseTaken() { m.dosesTaken.Inc() }
func (m *Metrics) DosesMissed(n int) { m.dosesMissed.Add(float64(n)) }
func (m *Metrics) VitalLogged() { m.vitalsLogged.Inc() }
func (m *Metrics) SaveFailed() { m.saveFailures.Inc() }

// Purchase records a purchase attempt; outcome is "success", "insufficient_funds" or "error"
func (m *Metrics) Purchase(outcome string) { m.purchases.WithLabelValues(outcome).Inc() }

// Report records a report generation; outcome is "success" or "error"
func (m *Metrics) Report(outcome string) { m.reports.WithLabelValues(outcome).Inc() }
