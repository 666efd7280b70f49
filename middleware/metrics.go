package middleware

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/corebanking/pipeline-audit/observability"
)

// Metrics counts requests per route pattern, method and response status.
// The chi route pattern is used as the handler label so path parameters do
// not explode the cardinality.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		observability.HTTPRequestsTotal.
			WithLabelValues(pattern, r.Method, strconv.Itoa(ww.Status())).Inc()
	})
}
