package middleware

import (
	"net/http"
	"strconv"
	"time"

	"plant-telemetry-pipeline/internal/metrics"
)

// statusRecorder remembers the first status code written
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Instrument records request count and latency for endpoint
func Instrument(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, req)

		status := strconv.Itoa(rec.status)
		metrics.HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())
	})
}

// InstrumentFunc is Instrument for a HandlerFunc
func InstrumentFunc(endpoint string, fn http.HandlerFunc) http.Handler {
	return Instrument(endpoint, fn)
}
