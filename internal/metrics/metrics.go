package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forum",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "forum",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	// RuleViolations counts writes rejected by the validation layer, by entity.
	RuleViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forum",
		Name:      "rule_violations_total",
		Help:      "Writes rejected by entity validation rules.",
	}, []string{"entity"})

	// EventsPublished counts activity events by type and outcome.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forum",
		Name:      "events_published_total",
		Help:      "Activity events written to Kafka.",
	}, []string{"type", "result"})

	// FeedDeliveries counts timeline inserts performed by the worker.
	FeedDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forum",
		Name:      "feed_deliveries_total",
		Help:      "Posts written into follower timelines.",
	}, []string{"result"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument records count and latency of every request, labelled by the matched mux pattern.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.code)).Inc()
		httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
