package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/savedtabs/idgen"
	"github.com/hazyhaar/savedtabs/kit"
)

var newTraceID = idgen.NanoID(8)

// TraceID returns middleware that generates a trace ID for each request, or
// adopts the caller's X-Trace-ID when it is a UUID. The ID goes into the
// context, the response headers and a per-request logger derived from
// logger (slog.Default() if nil).
// The trace ID is stored under kit.TraceIDKey and the logger under LoggerKey.
func TraceID(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := newTraceID()
			if in := r.Header.Get("X-Trace-ID"); idgen.Valid(in) {
				traceID = in
			}

			ctx := kit.WithTraceID(r.Context(), traceID)
			ctx = kit.WithTransport(ctx, "http")
			w.Header().Set("X-Trace-ID", traceID)

			l := logger.With(
				"trace_id", traceID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			ctx = context.WithValue(ctx, LoggerKey, l)
			l.Debug("request")

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
