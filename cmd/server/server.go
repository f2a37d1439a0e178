package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexedwards/scs/v2"
	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/smartsort/storefront/api"
	"github.com/smartsort/storefront/api/background"
	"github.com/smartsort/storefront/config"
	"github.com/smartsort/storefront/core/admin"
	"github.com/smartsort/storefront/database"
	"github.com/smartsort/storefront/email"
	"github.com/smartsort/storefront/paystack"
	"github.com/smartsort/storefront/rate"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded")
	}

	const prefix = "SMARTSORT"
	var cfg config.Config
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if err == conf.ErrHelpWanted {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("printing config: %w", err)
	}
	logger.Infof("startup config:\n%s", out)

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate the database: %w", err)
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.Admin.SessionLifetime
	sessionManager.Cookie.Secure = true
	sessionManager.Cookie.HttpOnly = true

	mail := email.New(
		cfg.Email.Host,
		cfg.Email.Port,
		cfg.Email.Username,
		cfg.Email.Password,
		cfg.Email.Sender,
	)

	bg := background.New(logger)

	gateway := paystack.New(cfg.Paystack.SecretKey, cfg.Paystack.URL, cfg.Paystack.Timeout)

	limiter := rate.NewLimiter(cfg.Rate.Burst, cfg.Rate.ExpiryM, cfg.Rate.LimitRPS)

	mux := api.APIMux(api.APIConfig{
		CorsOrigin:    cfg.Cors.Origin,
		Log:           logger,
		DB:            db,
		Session:       sessionManager,
		Mailer:        mail,
		Background:    bg,
		Paystack:      gateway,
		WebhookSecret: cfg.Paystack.SecretKey,
		PublicURL:     cfg.Web.PublicURL,
		AdminCreds: admin.Credentials{
			Username:     cfg.Admin.Username,
			PasswordHash: cfg.Admin.PasswordHash,
		},
		PublicLimiter: limiter,
	})

	server := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			server.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		if err := bg.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not complete all background tasks: %w", err)
		}
	}
	return nil
}
