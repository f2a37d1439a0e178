package config

import "time"

// Config is built once at startup and passed down to the components that
// need its pieces. Secrets are masked when the parsed config is printed.
type Config struct {
	Web      Web
	DB       DB
	Paystack Paystack
	Email    Email
	Admin    Admin
	Cors     Cors
	Rate     Rate
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`

	// PublicURL is the externally reachable base URL used to build the
	// gateway callback (tunnels in development, the real domain in prod).
	PublicURL string `conf:"default:http://127.0.0.1:8000"`
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost:5432"`
	Name       string `conf:"default:storefront"`
	DisableTLS bool   `conf:"default:true"`
}

type Paystack struct {
	SecretKey string        `conf:"mask"`
	URL       string        `conf:"default:https://api.paystack.co"`
	Timeout   time.Duration `conf:"default:10s"`
}

type Email struct {
	Host     string `conf:"default:smtp.gmail.com"`
	Port     string `conf:"default:587"`
	Username string
	Password string `conf:"mask"`
	Sender   string `conf:"default:support@smartsort.ai"`
}

type Admin struct {
	Username string `conf:"default:admin"`

	// PasswordHash is a bcrypt hash of the admin password.
	PasswordHash string `conf:"mask"`

	SessionLifetime time.Duration `conf:"default:720h"`
}

type Cors struct {
	Origin string
}

type Rate struct {
	Burst    int     `conf:"default:5"`
	ExpiryM  int     `conf:"default:10"`
	LimitRPS float64 `conf:"default:1"`
}
