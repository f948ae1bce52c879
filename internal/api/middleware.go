package api

import (
	"net/http"

	"github.com/felixge/httpsnoop"
)

// logRequests logs method, path, status and latency of every request.
// The query string is left out because it may carry a report token.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		logger := s.logger.WithFields(map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     m.Code,
			"latency_ms": m.Duration.Milliseconds(),
		})
		if m.Code >= http.StatusInternalServerError {
			logger.Warn("request failed")
			return
		}
		logger.Debug("request")
	})
}
