// Package metrics provides Prometheus metrics collection for the MCP server.
// HTTP transport metrics:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// Domain metrics:
//   - mcp_tool_calls_total: Counter with tool and outcome labels
//   - mcp_tool_call_duration_seconds: Histogram with tool label
//   - lookup_source_total: Counter with operation and source labels
//   - upstream_requests_total: Counter with endpoint and status labels
//   - document_cache_total: Counter with result label
//   - data_refresh_total: Counter with result label
//   - data_last_refresh_timestamp_seconds: Gauge of the last published snapshot
//
// All metrics are automatically registered with the Prometheus default registry
// during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	ToolCallTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_tool_calls_total",
			Help: "Total MCP tool calls",
		},
		[]string{"tool", "outcome"},
	)

	ToolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcp_tool_call_duration_seconds",
			Help:    "MCP tool call latency",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"tool"},
	)

	LookupSourceTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_source_total",
			Help: "Lookups answered per data source (rest_api or csv)",
		},
		[]string{"operation", "source"},
	)

	UpstreamRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Requests sent to the SÚKL REST service",
		},
		[]string{"endpoint", "status"},
	)

	DocumentCacheTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_cache_total",
			Help: "Document cache lookups by result (hit or miss)",
		},
		[]string{"result"},
	)

	DataRefreshTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "data_refresh_total",
			Help: "Open-data refreshes by result (success, failure or skipped)",
		},
		[]string{"result"},
	)

	DataLastRefresh = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "data_last_refresh_timestamp_seconds",
			Help: "Unix time of the last published open-data snapshot",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(ToolCallTotals)
	prometheus.MustRegister(ToolCallDuration)
	prometheus.MustRegister(LookupSourceTotals)
	prometheus.MustRegister(UpstreamRequestTotals)
	prometheus.MustRegister(DocumentCacheTotals)
	prometheus.MustRegister(DataRefreshTotals)
	prometheus.MustRegister(DataLastRefresh)
}
