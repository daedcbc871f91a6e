package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the service counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	cacheLookups   *prometheus.CounterVec
	scans          *prometheus.CounterVec
	updates        *prometheus.CounterVec
	artifactWrites *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "haulticket", Name: "cache_lookups_total", Help: "Cache lookups by key kind and result.",
		}, []string{"kind", "result"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "haulticket", Name: "scans_total", Help: "QR scans by outcome.",
		}, []string{"result"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "haulticket", Name: "record_updates_total", Help: "Record updates by outcome.",
		}, []string{"result"}),
		artifactWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "haulticket", Name: "artifact_writes_total", Help: "Artifact store writes by origin and result.",
		}, []string{"origin", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "haulticket", Name: "http_requests_total", Help: "HTTP requests by route and status class.",
		}, []string{"method", "route", "status"}),
	}
	m.reg.MustRegister(m.cacheLookups, m.scans, m.updates, m.artifactWrites, m.httpRequests,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(kind, result).Inc()
}

// Scan results: ok, expired, not_found, error.
func (m *Metrics) Scan(result string) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(result).Inc()
}

// Update results: changed, snapshot, unchanged, error.
func (m *Metrics) Update(result string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(result).Inc()
}

func (m *Metrics) ArtifactWrite(origin string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.artifactWrites.WithLabelValues(origin, result).Inc()
}

func (m *Metrics) HTTPRequest(method, route, status string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
}
