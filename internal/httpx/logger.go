package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// requestAttrs are the fields every request-scoped log line carries
func requestAttrs(r *http.Request) []any {
	attrs := []any{
		"http_method", r.Method,
		"http_path", r.URL.Path,
		"http_remote_addr", r.RemoteAddr,
	}
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		attrs = append(attrs, "trace_id", sc.TraceID().String())
	}
	if id := RequestIDFromContext(r.Context()); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	return attrs
}

// statusRecorder remembers the status code written by the handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Logger writes one line per request once the handler returns.
// 5xx responses are logged at error level.
func Logger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			defer func() {
				attrs := append(requestAttrs(r),
					"http_status", rec.status,
					"duration_ms", time.Since(start).Milliseconds(),
				)
				if ua := r.UserAgent(); ua != "" {
					attrs = append(attrs, "http_user_agent", ua)
				}

				level := slog.LevelInfo
				if rec.status >= http.StatusInternalServerError {
					level = slog.LevelError
				}
				slog.Log(r.Context(), level, "HTTP request complete", attrs...)
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
