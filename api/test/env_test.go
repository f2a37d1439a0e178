package test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smartsort/storefront/api"
	"github.com/smartsort/storefront/api/background"
	"github.com/smartsort/storefront/config"
	"github.com/smartsort/storefront/core/admin"
	"github.com/smartsort/storefront/core/product"
	"github.com/smartsort/storefront/database"
	"github.com/smartsort/storefront/paystack"
	"github.com/smartsort/storefront/random"
	"github.com/smartsort/storefront/rate"
	"golang.org/x/crypto/bcrypt"
)

type TestEnv struct {
	URL           string
	Server        *httptest.Server
	DB            *sqlx.DB
	Gateway       *fakeGateway
	Mailer        *fakeMailer
	Background    *background.Background
	WebhookSecret string
	AdminUser     string
	AdminPass     string
	Products      []product.Product
}

// NewTestEnv spins up a full server over a fresh database inside the
// shared Postgres container.
func NewTestEnv(t *testing.T, name string) (*TestEnv, error) {
	t.Helper()

	dbname := fmt.Sprintf("%s_%s", name, strings.ToLower(random.String(6)))

	admindb, err := database.Open(config.DB{
		User:       "postgres",
		Password:   "postgres",
		Host:       dbHost,
		Name:       "postgres",
		DisableTLS: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening admin connection: %w", err)
	}
	defer admindb.Close()

	if _, err := admindb.Exec(fmt.Sprintf("CREATE DATABASE %q", dbname)); err != nil {
		return nil, fmt.Errorf("creating test database: %w", err)
	}

	db, err := database.Open(config.DB{
		User:       "postgres",
		Password:   "postgres",
		Host:       dbHost,
		Name:       dbname,
		DisableTLS: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening test database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating test database: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	gateway := newFakeGateway(t)
	mailer := &fakeMailer{}
	bg := background.New(logger)

	secret := "sk_test_" + random.String(16)
	adminPass := random.String(16)

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPass), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("hashing admin password: %w", err)
	}

	mux := api.APIMux(api.APIConfig{
		Log:           logger,
		DB:            db,
		Session:       scs.New(),
		Mailer:        mailer,
		Background:    bg,
		Paystack:      paystack.New(secret, gateway.srv.URL, time.Second),
		WebhookSecret: secret,
		PublicURL:     "http://127.0.0.1:8000",
		AdminCreds: admin.Credentials{
			Username:     "admin",
			PasswordHash: string(hash),
		},
		PublicLimiter: rate.NewLimiter(1000, 100, 1000),
	})

	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		srv.Close()
		gateway.srv.Close()
		db.Close()
	})

	products, err := product.FetchAll(context.Background(), db)
	if err != nil {
		return nil, fmt.Errorf("fetching seeded products: %w", err)
	}

	env := TestEnv{
		URL:           srv.URL,
		Server:        srv,
		DB:            db,
		Gateway:       gateway,
		Mailer:        mailer,
		Background:    bg,
		WebhookSecret: secret,
		AdminUser:     "admin",
		AdminPass:     adminPass,
		Products:      products,
	}

	return &env, nil
}

// Client follows redirects and keeps cookies, like a browser.
func (e *TestEnv) Client() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{Jar: jar}
}

// NoRedirectClient stops at the first response so tests can inspect
// Location headers.
func (e *TestEnv) NoRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(r *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Drain waits for in-flight background tasks (email sends) to finish.
func (e *TestEnv) Drain(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.Background.Shutdown(ctx); err != nil {
		t.Fatalf("draining background tasks: %v", err)
	}
}
