package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "ponbike"

	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics holds the bridge's Prometheus collectors on a private registry.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	vendorRequests *prometheus.CounterVec
	vendorLatency  *prometheus.HistogramVec

	cycles         *prometheus.CounterVec
	cycleLatency   *prometheus.HistogramVec
	coalesced      prometheus.Counter
	state          *prometheus.GaugeVec
	bikes          prometheus.Gauge
	lastSuccess    prometheus.Gauge
	subscribers    prometheus.Gauge
	publishedTotal *prometheus.CounterVec
}

// States exported by the coordinator state gauge.
var knownStates = []string{"idle", "refreshing", "ready", "degraded"}

// New creates and registers every collector, plus the Go and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		vendorRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vendor_requests_total",
				Help:      "Vendor API requests by path and status code (0 = no response).",
			},
			[]string{"path", "code"},
		),
		vendorLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "vendor_request_duration_seconds",
				Help:      "Vendor API request latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path"},
		),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_cycles_total",
				Help:      "Refresh cycles by result.",
			},
			[]string{"result"},
		),
		cycleLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "refresh_cycle_duration_seconds",
				Help:      "Refresh cycle duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		coalesced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_coalesced_total",
				Help:      "Refresh requests that joined an in-flight cycle.",
			},
		),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "coordinator_state",
				Help:      "1 for the coordinator's current state, 0 otherwise.",
			},
			[]string{"state"},
		),
		bikes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_bikes",
				Help:      "Bikes in the current snapshot.",
			},
		),
		lastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful refresh cycle.",
			},
		),
		subscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "subscribers",
				Help:      "Registered snapshot subscribers.",
			},
		),
		publishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mqtt_published_total",
				Help:      "MQTT state publishes by result.",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.vendorRequests,
		m.vendorLatency,
		m.cycles,
		m.cycleLatency,
		m.coalesced,
		m.state,
		m.bikes,
		m.lastSuccess,
		m.subscribers,
		m.publishedTotal,
	)

	for _, s := range knownStates {
		m.state.WithLabelValues(s).Set(0)
	}
	m.state.WithLabelValues("idle").Set(1)

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one vendor API call.
func (m *Metrics) ObserveRequest(path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.vendorRequests.WithLabelValues(path, strconv.Itoa(status)).Inc()
	m.vendorLatency.WithLabelValues(path).Observe(elapsed.Seconds())
}

// ObserveCycle records a finished refresh cycle.
func (m *Metrics) ObserveCycle(err error, elapsed time.Duration, bikes int) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleLatency.WithLabelValues(result).Observe(elapsed.Seconds())
	if err == nil {
		m.bikes.Set(float64(bikes))
		m.lastSuccess.SetToCurrentTime()
	}
}

// IncCoalesced counts a refresh request that joined an in-flight cycle.
func (m *Metrics) IncCoalesced() {
	if m == nil {
		return
	}
	m.coalesced.Inc()
}

// SetState marks state as current.
func (m *Metrics) SetState(state string) {
	if m == nil {
		return
	}
	for _, s := range knownStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}

// SetSubscribers records the number of registered subscribers.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

// ObservePublish records one MQTT publish.
func (m *Metrics) ObservePublish(err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.publishedTotal.WithLabelValues(result).Inc()
}
