package middleware

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ridebid/internal/observability"
)

// Logger logs every request and records it in the HTTP metrics. The
// metric path label uses the chi route pattern, not the raw URL, so
// request IDs do not explode the label cardinality.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			elapsed := time.Since(start)

			routePattern := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					routePattern = pattern
				}
			}

			status := strconv.Itoa(ww.Status())
			observability.HTTPRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
			observability.HTTPRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(elapsed.Seconds())

			log.Printf(
				"%s %s %d %s %s",
				r.Method,
				r.URL.Path,
				ww.Status(),
				elapsed,
				r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
