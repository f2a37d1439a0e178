package middleware

import (
	"context"
	"net/http"

	"github.com/smartsort/storefront/api/web"
)

// SecureHeaders stamps the hardening headers on every response.
func SecureHeaders() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "SAMEORIGIN")
			w.Header().Set("X-XSS-Protection", "1; mode=block")
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
