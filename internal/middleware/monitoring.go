package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mroshb/catchup/internal/metrics"
	"github.com/mroshb/catchup/pkg/logger"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Monitor records request counts and latency, labelled by route template so
// ids in paths do not create new series.
func Monitor(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					path = tmpl
				}
			}
			elapsed := time.Since(start)
			m.HTTPRequest(path, r.Method, ww.statusCode, elapsed)

			if ww.statusCode >= http.StatusInternalServerError {
				logger.Warn("Request failed", "path", path, "method", r.Method, "status", ww.statusCode, "duration_ms", elapsed.Milliseconds())
			} else {
				logger.Debug("Request served", "path", path, "method", r.Method, "status", ww.statusCode, "duration_ms", elapsed.Milliseconds())
			}
		})
	}
}
