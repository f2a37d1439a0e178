package api

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smartsort/storefront/api/background"
	"github.com/smartsort/storefront/api/middleware"
	"github.com/smartsort/storefront/api/web"
	"github.com/smartsort/storefront/core/access"
	"github.com/smartsort/storefront/core/admin"
	"github.com/smartsort/storefront/core/order"
	"github.com/smartsort/storefront/core/product"
	"github.com/smartsort/storefront/paystack"
	"github.com/smartsort/storefront/rate"
)

type APIConfig struct {
	CorsOrigin    string
	Log           logrus.FieldLogger
	DB            *sqlx.DB
	Session       *scs.SessionManager
	Mailer        order.Mailer
	Background    *background.Background
	Paystack      *paystack.Client
	WebhookSecret string
	PublicURL     string
	AdminCreds    admin.Credentials
	PublicLimiter *rate.Limiter
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, admin.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())
	a.mw = append(a.mw, middleware.SecureHeaders())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authed := admin.Authenticate(cfg.Session, cfg.AdminCreds)
	limited := middleware.RateLimit(cfg.PublicLimiter)

	a.Handle(http.MethodGet, "/api/products", product.HandleList(cfg.DB))
	a.Handle(http.MethodGet, "/api/products/{id}", product.HandleShow(cfg.DB))
	a.Handle(http.MethodPost, "/api/products", product.HandleCreate(cfg.DB), authed)

	a.Handle(http.MethodPost, "/create-order/{product_id}", order.HandleCheckout(cfg.DB, cfg.Paystack, cfg.PublicURL), limited)
	a.Handle(http.MethodGet, "/verify-payment", order.HandleVerify(cfg.DB, cfg.Paystack, cfg.Mailer, cfg.Background))
	a.Handle(http.MethodPost, "/webhook", order.HandleWebhook(cfg.DB, cfg.WebhookSecret, cfg.Mailer, cfg.Background), limited)
	a.Handle(http.MethodGet, "/access/{reference}", order.HandleAccess(cfg.DB))

	a.Handle(http.MethodGet, "/check-access/{email}/{product_id}", access.HandleCheck(cfg.DB))
	a.Handle(http.MethodGet, "/my-access/{email}", access.HandleListByEmail(cfg.DB))

	a.Handle(http.MethodPost, "/admin/login", admin.HandleLogin(cfg.Session, cfg.AdminCreds))
	a.Handle(http.MethodPost, "/admin/logout", admin.HandleLogout(cfg.Session))
	a.Handle(http.MethodGet, "/admin/dashboard", admin.HandleDashboard(cfg.DB), authed)
	a.Handle(http.MethodPost, "/admin/orders/{id}/override", order.HandleOverride(cfg.DB, cfg.Mailer, cfg.Background), authed)
	a.Handle(http.MethodPost, "/admin/reconcile", order.HandleReconcile(cfg.DB, cfg.Paystack, cfg.Mailer, cfg.Background, cfg.Log), authed)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
