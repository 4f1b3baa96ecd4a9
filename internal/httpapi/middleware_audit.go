package httpapi

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// AuditMiddleware logs one line per request. Health and metrics probes are
// logged at debug so scrapers do not flood the log.
type AuditMiddleware struct {
	logger zerolog.Logger
}

// NewAuditMiddleware returns request logging middleware.
func NewAuditMiddleware(logger zerolog.Logger) *AuditMiddleware {
	return &AuditMiddleware{logger: logger.With().Str("component", "audit").Logger()}
}

// Handler wraps next.
func (m *AuditMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		event := m.logger.Info()
		switch {
		case wrapped.status >= http.StatusInternalServerError:
			event = m.logger.Warn()
		case r.URL.Path == "/health" || r.URL.Path == "/metrics":
			event = m.logger.Debug()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapped.status).
			Int64("bytes", wrapped.bytes).
			Dur("duration", time.Since(start)).
			Msg("Request")
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (w *statusResponseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusResponseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

func (w *statusResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
