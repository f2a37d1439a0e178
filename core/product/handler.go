package product

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
	"github.com/smartsort/storefront/validate"
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var (
			ps  []Product
			err error
		)

		switch t := r.URL.Query().Get("type"); t {
		case "":
			ps, err = FetchAll(ctx, db)
		case string(TypeCourse), string(TypeService):
			ps, err = FetchByType(ctx, db, Type(t))
		default:
			return weberr.NewError(errors.New("unknown product type"), "unknown product type", http.StatusBadRequest)
		}

		if err != nil {
			return fmt.Errorf("listing products: %w", err)
		}

		return web.Respond(ctx, w, ps, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		p, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching product[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, p, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var pn ProductNew
		if err := web.Decode(w, r, &pn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding product: %w", err))
		}

		if err := validate.Check(pn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		p := Product{
			ID:          validate.GenerateID(),
			Title:       pn.Title,
			Description: pn.Description,
			Price:       pn.Price,
			Type:        Type(pn.Type),
			CreatedAt:   time.Now().UTC(),
		}
		if pn.ResourceLink != "" {
			p.ResourceLink = sql.NullString{String: pn.ResourceLink, Valid: true}
		}

		if err := Create(ctx, db, p); err != nil {
			return fmt.Errorf("creating product: %w", err)
		}

		return web.Respond(ctx, w, p, http.StatusCreated)
	}
}
