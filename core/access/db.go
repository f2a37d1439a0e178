package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Grant creates the access row for a paid order. The existence check is
// an optimization; the unique constraint on (customer_email, product_id)
// is the guarantee, so a racing insert degrades to a silent no-op via
// ON CONFLICT instead of a user-visible error. The returned bool reports
// whether this call created the row.
func Grant(ctx context.Context, db sqlx.ExtContext, acc Access) (bool, error) {
	if _, err := Fetch(ctx, db, acc.CustomerEmail, acc.ProductID); err == nil {
		return false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	const q = `
	INSERT INTO user_access (access_id, customer_email, product_id, order_id, access_type, granted_at)
	VALUES (:access_id, :customer_email, :product_id, :order_id, :access_type, :granted_at)
	ON CONFLICT ON CONSTRAINT unique_user_product_access DO NOTHING`

	res, err := sqlx.NamedExecContext(ctx, db, q, acc)
	if err != nil {
		return false, fmt.Errorf("granting access to product[%s] for %s: %w", acc.ProductID, acc.CustomerEmail, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("granting access to product[%s] for %s: %w", acc.ProductID, acc.CustomerEmail, err)
	}

	return n == 1, nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, email string, productID string) (Access, error) {
	const q = `SELECT * FROM user_access WHERE customer_email = $1 AND product_id = $2`

	var acc Access
	if err := sqlx.GetContext(ctx, db, &acc, q, email, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Access{}, err
		}
		return Access{}, fmt.Errorf("fetching access to product[%s] for %s: %w", productID, email, err)
	}

	return acc, nil
}

func FetchByEmail(ctx context.Context, db sqlx.ExtContext, email string) ([]Access, error) {
	const q = `SELECT * FROM user_access WHERE customer_email = $1 ORDER BY granted_at DESC`

	accs := []Access{}
	if err := sqlx.SelectContext(ctx, db, &accs, q, email); err != nil {
		return nil, fmt.Errorf("fetching access rows for %s: %w", email, err)
	}

	return accs, nil
}

func FetchRecent(ctx context.Context, db sqlx.ExtContext, limit int) ([]Access, error) {
	const q = `SELECT * FROM user_access ORDER BY granted_at DESC LIMIT $1`

	accs := []Access{}
	if err := sqlx.SelectContext(ctx, db, &accs, q, limit); err != nil {
		return nil, fmt.Errorf("fetching recent access rows: %w", err)
	}

	return accs, nil
}
