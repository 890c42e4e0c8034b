package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Proton-105/sohaeng-web/pkg/metrics"
)

// Metrics measures handling time and status per chi route pattern, reporting them to Prometheus.
// Raw paths are never used as labels since they carry ids.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := wrapWriter(w)
		next.ServeHTTP(rec, r)

		metrics.RecordHTTPRequest(routePattern(r), r.Method, rec.Status(), time.Since(start))
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
