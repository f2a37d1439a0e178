package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound reports a reference with no order behind it.
var ErrNotFound = errors.New("order not found")

func Create(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders (order_id, customer_email, product_id, payment_reference, status, amount, created_at, updated_at)
	VALUES (:order_id, :customer_email, :product_id, :payment_reference, :status, :amount, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	return nil
}

// AttachReference binds the order to its remote transaction. The unique
// constraint on payment_reference rejects reuse across orders.
func AttachReference(ctx context.Context, db sqlx.ExtContext, orderID string, reference string) error {
	const q = `
	UPDATE orders
	SET payment_reference = $2, updated_at = $3
	WHERE order_id = $1`

	if _, err := db.ExecContext(ctx, q, orderID, reference, time.Now().UTC()); err != nil {
		return fmt.Errorf("attaching reference[%s] to order[%s]: %w", reference, orderID, err)
	}

	return nil
}

// MarkPaid flips the order bound to the reference from pending to paid.
// The conditional UPDATE makes the database the arbiter of transition
// ownership: the returned bool is true only for the single caller whose
// statement performed the flip. An already-paid order comes back
// unchanged with false, an unknown reference yields ErrNotFound.
func MarkPaid(ctx context.Context, db sqlx.ExtContext, reference string) (Order, bool, error) {
	const q = `
	UPDATE orders
	SET status = $2, updated_at = $3
	WHERE payment_reference = $1 AND status = $4
	RETURNING *`

	var ord Order
	err := sqlx.GetContext(ctx, db, &ord, q, reference, Paid, time.Now().UTC(), Pending)
	if err == nil {
		return ord, true, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return Order{}, false, fmt.Errorf("marking order[%s] paid: %w", reference, err)
	}

	// Lost the race or a duplicate delivery: report the current state.
	ord, err = FetchByReference(ctx, db, reference)
	if err != nil {
		return Order{}, false, err
	}

	return ord, false, nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, orderID string) (Order, error) {
	const q = `SELECT * FROM orders WHERE order_id = $1`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("fetching order[%s]: %w", orderID, err)
	}

	return ord, nil
}

func FetchByReference(ctx context.Context, db sqlx.ExtContext, reference string) (Order, error) {
	const q = `SELECT * FROM orders WHERE payment_reference = $1`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("fetching order by reference[%s]: %w", reference, err)
	}

	return ord, nil
}

func List(ctx context.Context, db sqlx.ExtContext, f Filter) ([]Order, error) {
	const q = `
	SELECT * FROM orders
	WHERE ($1 = '' OR status = $1)
	  AND ($2 = '' OR customer_email ILIKE '%' || $2 || '%')
	ORDER BY created_at DESC`

	ords := []Order{}
	if err := sqlx.SelectContext(ctx, db, &ords, q, f.Status, f.Email); err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	return ords, nil
}

// ListStalePending returns pending orders that already hold a reference
// and have not moved for at least the given age. They are the input of
// the manual reconciliation sweep.
func ListStalePending(ctx context.Context, db sqlx.ExtContext, olderThan time.Duration) ([]Order, error) {
	const q = `
	SELECT * FROM orders
	WHERE status = $1 AND payment_reference IS NOT NULL AND updated_at < $2
	ORDER BY created_at`

	cutoff := time.Now().UTC().Add(-olderThan)

	ords := []Order{}
	if err := sqlx.SelectContext(ctx, db, &ords, q, Pending, cutoff); err != nil {
		return nil, fmt.Errorf("listing stale pending orders: %w", err)
	}

	return ords, nil
}

func FetchStats(ctx context.Context, db sqlx.ExtContext) (Stats, error) {
	const q = `
	SELECT o.status, p.product_type, COUNT(*) AS orders, SUM(o.amount) AS revenue
	FROM orders o
	JOIN products p ON p.product_id = o.product_id
	GROUP BY o.status, p.product_type`

	rows := []struct {
		Status  Status `db:"status"`
		Type    string `db:"product_type"`
		Orders  int    `db:"orders"`
		Revenue int    `db:"revenue"`
	}{}
	if err := sqlx.SelectContext(ctx, db, &rows, q); err != nil {
		return Stats{}, fmt.Errorf("aggregating order stats: %w", err)
	}

	st := Stats{
		RevenueByType:   map[string]int{},
		RevenueByStatus: map[string]int{},
	}
	for _, r := range rows {
		st.TotalOrders += r.Orders
		st.RevenueByStatus[string(r.Status)] += r.Revenue

		switch r.Status {
		case Paid:
			st.PaidOrders += r.Orders
			st.TotalRevenue += r.Revenue
			st.RevenueByType[r.Type] += r.Revenue
		case Pending:
			st.PendingOrders += r.Orders
		}
	}

	return st, nil
}
