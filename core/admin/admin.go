package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/smartsort/storefront/api/web"
	"github.com/smartsort/storefront/api/weberr"
	"golang.org/x/crypto/bcrypt"
)

const sessionKey = "is_admin"

// Credentials hold the configured admin identity. The password is only
// ever stored as a bcrypt hash.
type Credentials struct {
	Username     string
	PasswordHash string
}

func (c Credentials) check(username string, password string) bool {
	if c.Username == "" || c.PasswordHash == "" {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil

	return userOK && passOK
}

// Authenticate admits requests carrying an admin session or valid HTTP
// Basic credentials, and challenges everything else.
func Authenticate(session *scs.SessionManager, creds Credentials) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			if session.GetBool(ctx, sessionKey) {
				return handler(ctx, w, r)
			}

			if username, password, ok := r.BasicAuth(); ok && creds.check(username, password) {
				return handler(ctx, w, r)
			}

			w.Header().Set("WWW-Authenticate", `Basic realm="Login Required"`)
			return weberr.NotAuthorized(errors.New("admin authentication required"))
		}
		return h
	}
	return m
}
