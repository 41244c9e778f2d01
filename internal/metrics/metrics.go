// Package metrics exposes Prometheus counters for the auth flows.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authd"

type Metrics struct {
	registry *prometheus.Registry

	flows    *prometheus.CounterVec
	mail     *prometheus.CounterVec
	cleanup  *prometheus.CounterVec
	requests *prometheus.HistogramVec
}

// New registers the collectors on a private registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		flows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_total",
			Help:      "Auth flow outcomes by flow and result kind.",
		}, []string{"flow", "result"}),
		mail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_deliveries_total",
			Help:      "Transactional email deliveries by template and result.",
		}, []string{"template", "result"}),
		cleanup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_deleted_total",
			Help:      "Expired records removed by the cleanup worker.",
		}, []string{"record"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.flows,
		m.mail,
		m.cleanup,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveFlow counts one flow outcome. result is "ok" or an error kind.
func (m *Metrics) ObserveFlow(flow, result string) {
	if m == nil {
		return
	}
	m.flows.WithLabelValues(flow, result).Inc()
}

func (m *Metrics) ObserveMail(template string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.mail.WithLabelValues(template, result).Inc()
}

func (m *Metrics) ObserveCleanup(record string, deleted int64) {
	if m == nil || deleted <= 0 {
		return
	}
	m.cleanup.WithLabelValues(record).Add(float64(deleted))
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
