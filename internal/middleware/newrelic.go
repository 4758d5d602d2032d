package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// NewRelicMiddleware instruments each request as a transaction named by
// its chi route pattern. The SSE streams are excluded: a subscription
// held open for hours is not a transaction.
func NewRelicMiddleware(app *newrelic.Application) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if app == nil || strings.HasPrefix(r.URL.Path, "/v1/events/") {
				next.ServeHTTP(w, r)
				return
			}

			routePattern := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					routePattern = pattern
				}
			}

			txn := app.StartTransaction(r.Method + " " + routePattern)
			defer txn.End()

			if actor := r.Header.Get(ActorHeader); actor != "" {
				txn.AddAttribute("actor.id", actor)
			}
			if key := r.Header.Get(IdempotencyHeader); key != "" {
				txn.AddAttribute("idempotency.key", key)
			}

			txn.SetWebRequestHTTP(r)
			w = txn.SetWebResponse(w)

			r = newrelic.RequestWithTransactionContext(r, txn)

			next.ServeHTTP(w, r)
		})
	}
}
