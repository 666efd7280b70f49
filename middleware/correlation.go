package middleware

import (
	"net/http"

	"github.com/corebanking/pipeline-audit/services/correlation"
)

// CorrelationHeader carries the pipeline run id on HTTP requests
const CorrelationHeader = "X-Correlation-ID"

// CorrelationID binds the run id from the request header into the request
// context, so handlers and services can tag their work without threading
// the id explicitly. Requests without the header stay unbound; ingestion
// falls back to the id in the request body.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(CorrelationHeader); id != "" {
			r = r.WithContext(correlation.Bind(r.Context(), id))
			w.Header().Set(CorrelationHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}
