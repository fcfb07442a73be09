package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	refreshTotal        *prometheus.CounterVec
	refreshDuration     prometheus.Histogram
	layoutDuration      prometheus.Histogram
	discoveryTriggers   *prometheus.CounterVec
	sceneNodes          prometheus.Gauge
	sceneEdges          prometheus.Gauge
	sceneRegions        prometheus.Gauge
	activeSessions      prometheus.Gauge
}

// New creates a fresh Metrics registry with HTTP, refresh, and session
// metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "topoviz",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by topoviz",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "topoviz",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by topoviz",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	refreshTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "topoviz",
		Name:      "topology_refreshes_total",
		Help:      "Total topology refresh attempts by outcome",
	}, []string{"outcome"})

	refreshDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "topoviz",
		Name:      "topology_refresh_duration_seconds",
		Help:      "Duration of a full fetch-layout-merge refresh pass",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})

	layoutDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "topoviz",
		Name:      "layout_duration_seconds",
		Help:      "Duration of a layout pass alone",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	discoveryTriggers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "topoviz",
		Name:      "discovery_triggers_total",
		Help:      "Discovery trigger requests forwarded upstream, by outcome",
	}, []string{"outcome"})

	sceneNodes := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "topoviz",
		Name:      "scene_nodes",
		Help:      "Nodes in the last successful scene",
	})

	sceneEdges := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "topoviz",
		Name:      "scene_edges",
		Help:      "Edges in the last successful scene",
	})

	sceneRegions := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "topoviz",
		Name:      "scene_regions",
		Help:      "Regions in the last successful scene",
	})

	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "topoviz",
		Name:      "active_sessions",
		Help:      "Live interactive view sessions",
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		refreshTotal,
		refreshDuration,
		layoutDuration,
		discoveryTriggers,
		sceneNodes,
		sceneEdges,
		sceneRegions,
		activeSessions,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		refreshTotal:        refreshTotal,
		refreshDuration:     refreshDuration,
		layoutDuration:      layoutDuration,
		discoveryTriggers:   discoveryTriggers,
		sceneNodes:          sceneNodes,
		sceneEdges:          sceneEdges,
		sceneRegions:        sceneRegions,
		activeSessions:      activeSessions,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveRefresh records one refresh pass.
func (m *Metrics) ObserveRefresh(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(outcome).Inc()
	m.refreshDuration.Observe(duration.Seconds())
}

// ObserveLayout records the layout portion of a refresh.
func (m *Metrics) ObserveLayout(duration time.Duration) {
	if m == nil {
		return
	}
	m.layoutDuration.Observe(duration.Seconds())
}

// IncDiscoveryTrigger counts a discovery trigger by outcome.
func (m *Metrics) IncDiscoveryTrigger(outcome string) {
	if m == nil {
		return
	}
	m.discoveryTriggers.WithLabelValues(outcome).Inc()
}

// SetSceneSize records the composition of the last successful scene.
func (m *Metrics) SetSceneSize(nodes, edges, regions int) {
	if m == nil {
		return
	}
	m.sceneNodes.Set(float64(nodes))
	m.sceneEdges.Set(float64(edges))
	m.sceneRegions.Set(float64(regions))
}

// SetActiveSessions records the live session count.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
