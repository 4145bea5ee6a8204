package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/josh-kwaku/royalty-ledger/internal/logging"
)

// RequestIDHeader carries the correlation id in and out of the API. The
// provider client forwards it on disbursement submissions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 128

// Tracing settles the request's correlation id: a well-formed caller id wins,
// then the id chi's RequestID middleware assigned, then a fresh uuid. chi
// copies the caller's header verbatim, so its id is checked the same way.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !validRequestID(id) {
			id = chimw.GetReqID(r.Context())
		}
		if !validRequestID(id) {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// validRequestID keeps caller ids to short printable ASCII so they cannot
// break log lines or response headers.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '!' || id[i] > '~' {
			return false
		}
	}
	return true
}
