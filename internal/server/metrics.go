package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	selectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathsplit_selections_total",
		Help: "Variant selections by experiment and path.",
	}, []string{"experiment", "path"})

	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathsplit_outcomes_total",
		Help: "Recorded outcomes by experiment, path and conversion.",
	}, []string{"experiment", "path", "conversion"})

	renderTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathsplit_template_renders_total",
		Help: "Template renders by source.",
	}, []string{"source"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pathsplit_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern and status.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	}, []string{"route", "status"})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs each request and observes its latency.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		requestDuration.WithLabelValues(route, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}
