package ext

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the Prometheus collectors of an application. A nil *Metrics
// records nothing.
type Metrics struct {
	updatesReceived  *prometheus.CounterVec
	updatesProcessed *prometheus.CounterVec
	handlerErrors    prometheus.Counter
	inFlight         prometheus.Gauge
	latency          prometheus.Histogram
	gatherer         prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// uses a fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		updatesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tgbot_updates_received_total",
				Help: "Total number of updates received from Telegram",
			},
			[]string{"type"},
		),
		updatesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tgbot_updates_processed_total",
				Help: "Total number of updates processed by the application",
			},
			[]string{"type"},
		),
		handlerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tgbot_handler_errors_total",
			Help: "Total number of errors returned by handlers and jobs",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tgbot_updates_in_flight",
			Help: "Number of updates being processed",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tgbot_update_processing_seconds",
			Help:    "Time spent processing one update",
			Buckets: prometheus.DefBuckets,
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.updatesReceived, m.updatesProcessed, m.handlerErrors, m.inFlight, m.latency)
	return m
}

// Handler serves the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) received(updateType string) {
	if m != nil {
		m.updatesReceived.WithLabelValues(updateType).Inc()
	}
}

// begin marks an update as in flight and returns the func ending it.
func (m *Metrics) begin(updateType string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	m.inFlight.Inc()
	return func() {
		m.inFlight.Dec()
		m.latency.Observe(time.Since(start).Seconds())
		m.updatesProcessed.WithLabelValues(updateType).Inc()
	}
}

func (m *Metrics) handlerError() {
	if m != nil {
		m.handlerErrors.Inc()
	}
}
