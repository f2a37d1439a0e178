package admin

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/smartsort/storefront/api/web"
)

// LoadAndSave adapts the scs session lifecycle to the handler model.
// The response is buffered so the session cookie can still be written
// after the handler has produced its body.
func LoadAndSave(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			var token string
			if cookie, err := r.Cookie(session.Cookie.Name); err == nil {
				token = cookie.Value
			}

			ctx, err := session.Load(ctx, token)
			if err != nil {
				return fmt.Errorf("loading session: %w", err)
			}

			bw := &bufferedWriter{ResponseWriter: w}
			herr := handler(ctx, bw, r.WithContext(ctx))

			switch session.Status(ctx) {
			case scs.Modified:
				token, expiry, err := session.Commit(ctx)
				if err != nil {
					return fmt.Errorf("committing session: %w", err)
				}
				session.WriteSessionCookie(ctx, w, token, expiry)

			case scs.Destroyed:
				session.WriteSessionCookie(ctx, w, "", time.Time{})
			}

			bw.flush()
			return herr
		}
		return h
	}
	return m
}

type bufferedWriter struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (w *bufferedWriter) WriteHeader(status int) {
	w.status = status
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

func (w *bufferedWriter) flush() {
	if w.status != 0 {
		w.ResponseWriter.WriteHeader(w.status)
	}
	_, _ = w.ResponseWriter.Write(w.buf.Bytes())
}
