package middleware

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/smartsort/storefront/api/web"
	"github.com/smartsort/storefront/api/weberr"
)

// Errors turns handler errors into responses. Errors carrying a
// response render it (plain text or JSON); everything else becomes an
// opaque 500 so internals never leak to the caller.
func Errors(log logrus.FieldLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			fields := map[string]interface{}{
				"req_id":  ContextRequestID(ctx),
				"message": err,
			}
			if f, ok := weberr.Fields(err); ok {
				for k, v := range f {
					fields[k] = v
				}
			}

			log.WithFields(logrus.Fields(fields)).Error("ERROR")

			if body, code, ok := weberr.Response(err); ok {
				if text, ok := body.(weberr.Text); ok {
					return web.RespondText(ctx, w, string(text), code)
				}
				return web.Respond(ctx, w, body, code)
			}

			er := struct {
				Error string `json:"error"`
			}{
				http.StatusText(http.StatusInternalServerError),
			}
			return web.Respond(ctx, w, er, http.StatusInternalServerError)
		}
		return h
	}
	return m
}
