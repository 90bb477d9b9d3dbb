package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request status label values
const (
	StatusSuccess  = "success"
	StatusFailure  = "failure"
	StatusRejected = "quota_exceeded"
)

// Context cache label values
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

var (
	AIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_ai_requests_total",
			Help: "Total number of AI requests by request type and outcome",
		},
		[]string{"type", "status"},
	)

	AITokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_ai_tokens_total",
			Help: "Total model tokens consumed",
		},
		[]string{"type"},
	)

	AICostCents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_ai_cost_cents_total",
			Help: "Total computed model cost in cents",
		},
		[]string{"type"},
	)

	QuotaRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_ai_quota_rejections_total",
			Help: "Requests rejected by the monthly tier limit",
		},
		[]string{"type", "tier"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fitcoach_ai_request_duration_seconds",
			Help:    "AI request processing time in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"type"},
	)

	ContextCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_ai_context_cache_total",
			Help: "Context cache lookups by result",
		},
		[]string{"result"},
	)
)

// Handler serves the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}
