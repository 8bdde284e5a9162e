package api

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MetricsMiddleware tracks request timing and metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip the metrics endpoints themselves and the healthcheck to avoid
		// polluting metrics
		path := r.URL.Path
		if path == "/api/v1/metrics" ||
			path == "/api/v1/metrics/summary" ||
			path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		startTime := time.Now()
		requestID := uuid.New().String()

		// Wrap response writer to capture status code
		wrappedWriter := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrappedWriter, r)

		totalDuration := time.Since(startTime)
		trace := RequestTrace{
			RequestID:     requestID,
			Method:        r.Method,
			Path:          path,
			Status:        wrappedWriter.statusCode,
			StartTime:     startTime,
			EndTime:       time.Now(),
			TotalDuration: totalDuration,
		}
		if wrappedWriter.statusCode >= 400 {
			trace.Error = http.StatusText(wrappedWriter.statusCode)
		}

		// Recording is async and never impacts the request flow
		GetMetrics().RecordTrace(trace)

		if totalDuration > 1*time.Second {
			zap.S().Warnw("Slow request detected",
				"requestId", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"duration", totalDuration,
				"status", wrappedWriter.statusCode,
			)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
// It implements http.Hijacker to support WebSocket upgrades.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker to support WebSocket upgrades
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}
