package product

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, p Product) error {
	const q = `
	INSERT INTO products (product_id, title, description, price, product_type, resource_link, created_at)
	VALUES (:product_id, :title, :description, :price, :product_type, :resource_link, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, p); err != nil {
		return fmt.Errorf("inserting product: %w", err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Product, error) {
	const q = `SELECT * FROM products WHERE product_id = $1`

	var p Product
	if err := sqlx.GetContext(ctx, db, &p, q, id); err != nil {
		return Product{}, fmt.Errorf("fetching product[%s]: %w", id, err)
	}

	return p, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext) ([]Product, error) {
	const q = `SELECT * FROM products ORDER BY created_at, product_id`

	ps := []Product{}
	if err := sqlx.SelectContext(ctx, db, &ps, q); err != nil {
		return nil, fmt.Errorf("fetching products: %w", err)
	}

	return ps, nil
}

func FetchByType(ctx context.Context, db sqlx.ExtContext, t Type) ([]Product, error) {
	const q = `SELECT * FROM products WHERE product_type = $1 ORDER BY created_at, product_id`

	ps := []Product{}
	if err := sqlx.SelectContext(ctx, db, &ps, q, t); err != nil {
		return nil, fmt.Errorf("fetching products of type[%s]: %w", t, err)
	}

	return ps, nil
}
