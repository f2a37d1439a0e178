package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/smartsort/storefront/api/web"
	"github.com/smartsort/storefront/api/weberr"
	"github.com/smartsort/storefront/rate"
)

// RateLimit throttles a handler per client address. It guards the
// public mutation endpoints (checkout, webhook) against floods; the
// gateway retries on 429 like on any other non-2xx.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !lim.Check(host) {
				return weberr.NewError(
					errors.New("rate limit exceeded"),
					"too many requests",
					http.StatusTooManyRequests,
				)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
