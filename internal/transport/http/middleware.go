package http

import (
	"net/http"
	"time"

	"live-quiz-service/pkg/logger"
	"live-quiz-service/pkg/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Instrument records request metrics and a debug log line for route.
func Instrument(route string, m *metrics.Manager, log logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		m.RecordHTTPRequest(route, r.Method, rec.status, elapsed)
		log.Debug(r.Context(), "http request",
			logger.String("route", route),
			logger.String("method", r.Method),
			logger.Int("status", rec.status),
			logger.Float64("durationMs", float64(elapsed.Microseconds())/1000),
		)
	})
}
