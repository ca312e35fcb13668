package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nflow",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nflow",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nflow",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Chat metrics
	chatExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nflow",
			Subsystem: "chat",
			Name:      "exchanges_total",
			Help:      "Chat exchanges by account role and outcome",
		},
		[]string{"role", "outcome"},
	)

	quotaRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nflow",
			Subsystem: "quota",
			Name:      "rejections_total",
			Help:      "Requests refused because the free message allowance was used up",
		},
	)

	llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nflow",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Duration of completion requests to the language model",
			Buckets:   []float64{.25, .5, 1, 2, 4, 8, 16, 32, 60},
		},
		[]string{"model", "status"},
	)

	// Billing metrics
	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nflow",
			Subsystem: "billing",
			Name:      "webhook_events_total",
			Help:      "Subscription events received per provider and outcome",
		},
		[]string{"provider", "kind", "outcome"},
	)

	// Moderation / archive
	archivedConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nflow",
			Subsystem: "archive",
			Name:      "conversations_total",
			Help:      "Conversations written to the archive bucket",
		},
	)

	// Database metrics
	dbUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nflow",
			Subsystem: "db",
			Name:      "up",
			Help:      "1 if the last database health ping succeeded",
		},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nflow",
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "table"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns a middleware that records Prometheus metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(duration)
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordChatExchange records the outcome of one chat request
func RecordChatExchange(role, outcome string) {
	chatExchangesTotal.WithLabelValues(role, outcome).Inc()
}

// RecordQuotaRejection counts one refused chat request
func RecordQuotaRejection() {
	quotaRejectionsTotal.Inc()
}

// RecordLLMRequest records the latency of a completion call
func RecordLLMRequest(model, status string, duration time.Duration) {
	llmRequestDuration.WithLabelValues(model, status).Observe(duration.Seconds())
}

// RecordWebhookEvent records a subscription event and what happened to it
func RecordWebhookEvent(provider, kind, outcome string) {
	webhookEventsTotal.WithLabelValues(provider, kind, outcome).Inc()
}

// AddArchivedConversations counts conversations exported to object storage
func AddArchivedConversations(n int) {
	archivedConversationsTotal.Add(float64(n))
}

// SetDBUp sets the database health gauge
func SetDBUp(up bool) {
	if up {
		dbUp.Set(1)
		return
	}
	dbUp.Set(0)
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation, table string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
