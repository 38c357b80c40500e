package metricsvc

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors:
// - http_requests_total: requests per route, method & status
// - http_request_duration_seconds: request latency per route & method
// - upstream_requests_total: calls to the AI services per service, operation & outcome
// - upstream_request_duration_seconds: latency of the calls to the AI services
var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "HTTP requests by route, method and status."},
		[]string{"path", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request latency in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"path", "method"},
	)
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "upstream_requests_total", Help: "Upstream AI service calls by service, operation and outcome."},
		[]string{"service", "operation", "outcome"},
	)
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Upstream AI service call latency in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "operation"},
	)
)

// unmatchedPath labels the requests that matched no route.
const unmatchedPath = "unmatched"

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPLatency, UpstreamRequests, UpstreamLatency)
}

// Middleware records the base HTTP metrics of every request.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				ctx.Error(err) // commit the response so the status is known
			}
			path := ctx.Path()
			if path == "" {
				path = unmatchedPath
			}
			method := ctx.Request().Method
			HTTPLatency.WithLabelValues(path, method).Observe(time.Since(start).Seconds())
			HTTPRequests.WithLabelValues(path, method, strconv.Itoa(ctx.Response().Status)).Inc()
			return nil
		}
	}
}

// Handler exposes the collected metrics.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// ObserveUpstream records one call to an upstream service; err is the call's outcome.
func ObserveUpstream(service, operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	UpstreamLatency.WithLabelValues(service, operation).Observe(time.Since(start).Seconds())
	UpstreamRequests.WithLabelValues(service, operation, outcome).Inc()
}
