package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS lets the royalty dashboard call the API from the browser.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type",
			"Idempotency-Key",
			RequestIDHeader,
		},
		ExposedHeaders: []string{RequestIDHeader, "X-Idempotent-Replayed", "Location"},
		MaxAge:         300,
	})
}
