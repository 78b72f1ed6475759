package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics (metrics listener)
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	upstreamAttempts *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	cacheEntries     prometheus.Gauge
	toolCalls        *prometheus.CounterVec
	toolDuration     *prometheus.HistogramVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.upstreamAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockmcp_upstream_attempts_total",
			Help: "Total number of upstream fetch attempts",
		},
		[]string{"dataset", "outcome"},
	)
	r.upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stockmcp_upstream_attempt_duration_seconds",
			Help:    "Upstream fetch attempt duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"dataset"},
	)
	r.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockmcp_cache_lookups_total",
			Help: "Total number of cache lookups",
		},
		[]string{"namespace", "result"},
	)
	r.cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockmcp_cache_entries",
			Help: "Number of entries held by the cache",
		},
	)
	r.toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockmcp_tool_calls_total",
			Help: "Total number of MCP tool and resource calls",
		},
		[]string{"tool", "data_type", "status"},
	)
	r.toolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stockmcp_tool_call_duration_seconds",
			Help:    "MCP tool call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	reg.MustRegister(r.upstreamAttempts)
	reg.MustRegister(r.upstreamDuration)
	reg.MustRegister(r.cacheLookups)
	reg.MustRegister(r.cacheEntries)
	reg.MustRegister(r.toolCalls)
	reg.MustRegister(r.toolDuration)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordUpstreamAttempt records one call into the upstream provider.
// outcome is "ok", "empty" or "error".
func (r *Registry) RecordUpstreamAttempt(dataset, outcome string, duration float64) {
	r.upstreamAttempts.WithLabelValues(dataset, outcome).Inc()
	r.upstreamDuration.WithLabelValues(dataset).Observe(duration)
}

// RecordCacheLookup records a cache hit or miss.
func (r *Registry) RecordCacheLookup(namespace string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(namespace, result).Inc()
}

// SetCacheEntries sets the cache size gauge.
func (r *Registry) SetCacheEntries(n int) {
	r.cacheEntries.Set(float64(n))
}

// RecordToolCall records a completed tool or resource call.
func (r *Registry) RecordToolCall(tool, dataType, status string, duration float64) {
	r.toolCalls.WithLabelValues(tool, dataType, status).Inc()
	r.toolDuration.WithLabelValues(tool).Observe(duration)
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
