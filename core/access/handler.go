package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/smartsort/storefront/api/web"
	"github.com/smartsort/storefront/api/weberr"
	"github.com/smartsort/storefront/core/product"
	"github.com/smartsort/storefront/validate"
)

type grantView struct {
	Status       string       `json:"status"`
	Email        string       `json:"email"`
	ProductID    string       `json:"productId"`
	ProductTitle string       `json:"productTitle"`
	ProductType  product.Type `json:"productType"`
	ResourceLink string       `json:"resourceLink,omitempty"`
	GrantedAt    time.Time    `json:"grantedAt"`
}

func HandleCheck(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		email := web.Param(r, "email")
		productID := web.Param(r, "product_id")

		if err := validate.CheckEmail(email); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}
		if err := validate.CheckID(productID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		acc, err := Fetch(ctx, db, email, productID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				denied := struct {
					Status string `json:"status"`
				}{"denied"}
				return web.Respond(ctx, w, denied, http.StatusForbidden)
			}
			return fmt.Errorf("checking access: %w", err)
		}

		prd, err := product.Fetch(ctx, db, acc.ProductID)
		if err != nil {
			return fmt.Errorf("fetching granted product: %w", err)
		}

		view := grantView{
			Status:       "granted",
			Email:        acc.CustomerEmail,
			ProductID:    acc.ProductID,
			ProductTitle: prd.Title,
			ProductType:  acc.Type,
			ResourceLink: prd.ResourceLink.String,
			GrantedAt:    acc.GrantedAt,
		}

		return web.Respond(ctx, w, view, http.StatusOK)
	}
}

func HandleListByEmail(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		email := web.Param(r, "email")
		if err := validate.CheckEmail(email); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		accs, err := FetchByEmail(ctx, db, email)
		if err != nil {
			return fmt.Errorf("listing access: %w", err)
		}

		if len(accs) == 0 {
			none := struct {
				Status string `json:"status"`
				Email  string `json:"email"`
			}{"no_access", email}
			return web.Respond(ctx, w, none, http.StatusNotFound)
		}

		views := make([]grantView, 0, len(accs))
		for _, acc := range accs {
			prd, err := product.Fetch(ctx, db, acc.ProductID)
			if err != nil {
				return fmt.Errorf("fetching granted product[%s]: %w", acc.ProductID, err)
			}

			views = append(views, grantView{
				Status:       "granted",
				Email:        acc.CustomerEmail,
				ProductID:    acc.ProductID,
				ProductTitle: prd.Title,
				ProductType:  acc.Type,
				ResourceLink: prd.ResourceLink.String,
				GrantedAt:    acc.GrantedAt,
			})
		}

		out := struct {
			Status   string      `json:"status"`
			Email    string      `json:"email"`
			Count    int         `json:"accessCount"`
			Products []grantView `json:"products"`
		}{"success", email, len(views), views}

		return web.Respond(ctx, w, out, http.StatusOK)
	}
}
