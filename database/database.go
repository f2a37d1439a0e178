package database

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/smartsort/storefront/config"
)

func Open(cfg config.DB) (*sqlx.DB, error) {
	sslMode := "require"
	if cfg.DisableTLS {
		sslMode = "disable"
	}

	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host,
		Path:     cfg.Name,
		RawQuery: q.Encode(),
	}

	return sqlx.Connect("postgres", u.String())
}

// StatusCheck waits for the database to be ready, retrying with the
// context as the deadline.
func StatusCheck(ctx context.Context, db *sqlx.DB) error {
	var pingError error
	for attempts := 1; ; attempts++ {
		pingError = db.Ping()
		if pingError == nil {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("database not ready: %w", pingError)
		default:
		}
	}

	var tmp bool
	return db.QueryRowContext(ctx, "SELECT true").Scan(&tmp)
}

// Transaction runs fn inside a transaction, rolling back on error.
func Transaction(db *sqlx.DB, fn func(sqlx.ExtContext) error) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if errTx := tx.Rollback(); errTx != nil {
			return fmt.Errorf("rolling back transaction: %v (original error: %w)", errTx, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
