package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/smartsort/storefront/api/web"
	"github.com/smartsort/storefront/api/weberr"
	"github.com/smartsort/storefront/core/access"
	"github.com/smartsort/storefront/core/order"
)

func HandleLogin(session *scs.SessionManager, creds Credentials) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := r.ParseForm(); err != nil {
			return weberr.BadRequest(fmt.Errorf("parsing form: %w", err))
		}

		username := r.PostFormValue("username")
		password := r.PostFormValue("password")

		if !creds.check(username, password) {
			return weberr.NotAuthorized(errors.New("invalid admin credentials"))
		}

		// Rotate the token on privilege change.
		if err := session.RenewToken(ctx); err != nil {
			return fmt.Errorf("renewing session token: %w", err)
		}
		session.Put(ctx, sessionKey, true)

		ok := struct {
			Status string `json:"status"`
		}{"ok"}
		return web.Respond(ctx, w, ok, http.StatusOK)
	}
}

func HandleLogout(session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := session.Destroy(ctx); err != nil {
			return fmt.Errorf("destroying session: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleDashboard serves the admin console data: filterable orders,
// revenue aggregates and the latest access grants.
func HandleDashboard(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		f := order.Filter{
			Status: r.URL.Query().Get("status"),
			Email:  r.URL.Query().Get("email"),
		}

		ords, err := order.List(ctx, db, f)
		if err != nil {
			return fmt.Errorf("listing orders: %w", err)
		}

		stats, err := order.FetchStats(ctx, db)
		if err != nil {
			return fmt.Errorf("fetching stats: %w", err)
		}

		recent, err := access.FetchRecent(ctx, db, 10)
		if err != nil {
			return fmt.Errorf("fetching recent grants: %w", err)
		}

		out := struct {
			Orders       []order.Order   `json:"orders"`
			Stats        order.Stats     `json:"stats"`
			RecentAccess []access.Access `json:"recentAccess"`
		}{ords, stats, recent}

		return web.Respond(ctx, w, out, http.StatusOK)
	}
}
