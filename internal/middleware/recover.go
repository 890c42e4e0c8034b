package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/sohaeng-web/pkg/logger"
	"github.com/Proton-105/sohaeng-web/pkg/metrics"
)

// Recoverer turns a handler panic into a 500, logs the stack and reports it to Sentry.
func Recoverer(log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				ctx := r.Context()
				hub := sentry.GetHubFromContext(ctx)
				if hub == nil {
					hub = sentry.CurrentHub()
				}
				hub.RecoverWithContext(ctx, rec)

				log.ErrorContext(ctx, "panic while handling request",
					slog.Any("panic", rec),
					slog.String("path", r.URL.Path),
					slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
					slog.String("stack", string(debug.Stack())),
				)
				metrics.RecordError("PANIC", "critical")

				w.WriteHeader(http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
