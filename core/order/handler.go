package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smartsort/storefront/api/background"
	"github.com/smartsort/storefront/api/web"
	"github.com/smartsort/storefront/api/weberr"
	"github.com/smartsort/storefront/core/access"
	"github.com/smartsort/storefront/core/product"
	"github.com/smartsort/storefront/database"
	"github.com/smartsort/storefront/paystack"
	"github.com/smartsort/storefront/validate"
)

// Mailer sends the payment confirmation. Failures never reach the
// payment flow: sends run on the background runner and are only logged.
type Mailer interface {
	SendPaymentConfirmation(ord Order, prd product.Product) error
}

// HandleCheckout creates a pending order, initializes the remote
// transaction and hands the browser to the gateway's hosted page.
func HandleCheckout(db *sqlx.DB, gw *paystack.Client, publicURL string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := r.ParseForm(); err != nil {
			return weberr.BadRequest(fmt.Errorf("parsing form: %w", err))
		}

		email := r.PostFormValue("email")
		if err := validate.CheckEmail(email); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		productID := web.Param(r, "product_id")
		if err := validate.CheckID(productID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		prd, err := product.Fetch(ctx, db, productID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching product[%s]: %w", productID, err)
		}

		amount, err := parseAmount(r.PostFormValue("amount"), prd.Price)
		if err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		now := time.Now().UTC()
		ord := Order{
			ID:            validate.GenerateID(),
			CustomerEmail: email,
			ProductID:     prd.ID,
			Status:        Pending,
			Amount:        amount,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := Create(ctx, db, ord); err != nil {
			return fmt.Errorf("creating order: %w", err)
		}

		reference := Reference(ord.ID)

		auth, err := gw.Initialize(ctx, email, amount, reference, publicURL+"/verify-payment")
		if err != nil {
			// The order stays pending without a reference: harmless,
			// but it can never be confirmed.
			return weberr.NewTextError(err, "Payment initialization failed", http.StatusBadGateway)
		}

		if err := AttachReference(ctx, db, ord.ID, reference); err != nil {
			return fmt.Errorf("binding order[%s] to its transaction: %w", ord.ID, err)
		}

		return web.Redirect(ctx, w, r, auth.AuthorizationURL, http.StatusSeeOther)
	}
}

// HandleVerify is the synchronous confirmation trigger: the customer's
// browser returns from the gateway carrying a reference. The redirect is
// unauthenticated input, so the transaction is re-verified server-side
// before anything is mutated.
func HandleVerify(db *sqlx.DB, gw *paystack.Client, mailer Mailer, bg *background.Background) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		reference := r.URL.Query().Get("reference")
		if reference == "" {
			return weberr.BadRequest(errors.New("missing reference"))
		}

		ver, err := gw.Verify(ctx, reference)
		if err != nil {
			return weberr.NewTextError(err, "Payment verification failed.", http.StatusBadGateway)
		}

		if !ver.Success() {
			err := fmt.Errorf("transaction[%s] not settled: gateway status %q", reference, ver.Status)
			return weberr.NewTextError(err, "Payment verification failed.", http.StatusPaymentRequired)
		}

		// Re-run fulfillment even when the webhook won the transition:
		// the access grantor's own idempotency absorbs the duplicate.
		if _, err := confirm(ctx, db, mailer, bg, reference, true); err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(fmt.Errorf("no order bound to reference[%s]", reference))
			}
			return fmt.Errorf("confirming order by reference[%s]: %w", reference, err)
		}

		return web.Redirect(ctx, w, r, "/access/"+reference, http.StatusSeeOther)
	}
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// HandleWebhook is the asynchronous confirmation trigger. The signature
// is checked over the raw body before any field is parsed; everything
// after a valid charge.success is idempotent, so a duplicate delivery or
// an unknown reference is acknowledged with 200 and no side effect.
func HandleWebhook(db *sqlx.DB, secret string, mailer Mailer, bg *background.Background) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		r.Body = http.MaxBytesReader(w, r.Body, 1048576)

		b, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("reading the request body: %w", err))
		}

		sig := r.Header.Get(paystack.SignatureHeader)
		if !paystack.VerifySignature(secret, b, sig) {
			// The payload is untrusted at this point and must not be
			// logged.
			return weberr.NewTextError(errors.New("webhook signature mismatch"), "Invalid signature", http.StatusBadRequest)
		}

		// The signature already proves the sender holds the secret, so a
		// body this side cannot parse is acknowledged rather than bounced
		// back into the gateway's retry queue.
		var evt webhookEvent
		if err := json.Unmarshal(b, &evt); err != nil {
			return web.RespondText(ctx, w, "OK", http.StatusOK)
		}

		if evt.Event != "charge.success" || evt.Data.Reference == "" {
			return web.RespondText(ctx, w, "OK", http.StatusOK)
		}

		if _, err := confirm(ctx, db, mailer, bg, evt.Data.Reference, false); err != nil {
			if errors.Is(err, ErrNotFound) {
				return web.RespondText(ctx, w, "OK", http.StatusOK)
			}
			// A non-2xx answer makes the gateway retry the delivery,
			// which is exactly what a transient failure here wants.
			return fmt.Errorf("confirming order by reference[%s]: %w", evt.Data.Reference, err)
		}

		return web.RespondText(ctx, w, "OK", http.StatusOK)
	}
}

// HandleAccess renders the post-payment state for a reference.
func HandleAccess(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		reference := web.Param(r, "reference")

		ord, err := FetchByReference(ctx, db, reference)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching order by reference[%s]: %w", reference, err)
		}

		if ord.Status != Paid {
			denied := struct {
				Status    string `json:"status"`
				Reference string `json:"reference"`
			}{string(ord.Status), reference}
			return web.Respond(ctx, w, denied, http.StatusForbidden)
		}

		prd, err := product.Fetch(ctx, db, ord.ProductID)
		if err != nil {
			return fmt.Errorf("fetching product[%s]: %w", ord.ProductID, err)
		}

		view := struct {
			Status       string       `json:"status"`
			Reference    string       `json:"reference"`
			ProductTitle string       `json:"productTitle"`
			ProductType  product.Type `json:"productType"`
			Description  string       `json:"description"`
			ResourceLink string       `json:"resourceLink,omitempty"`
		}{
			Status:       string(Paid),
			Reference:    reference,
			ProductTitle: prd.Title,
			ProductType:  prd.Type,
			Description:  prd.Description,
		}
		if prd.Type == product.TypeCourse {
			view.ResourceLink = prd.ResourceLink.String
		}

		return web.Respond(ctx, w, view, http.StatusOK)
	}
}

// HandleOverride is the manual reconciliation escape hatch: an admin
// force-settles a pending order without gateway confirmation. It runs
// through the same MarkPaid and fulfillment pair as the two triggers so
// every invariant still holds.
func HandleOverride(db *sqlx.DB, mailer Mailer, bg *background.Background) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		ord, err := Fetch(ctx, db, orderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching order[%s]: %w", orderID, err)
		}

		// Orders abandoned before gateway initialization have no
		// reference yet; give them one so the canonical path applies.
		if !ord.PaymentReference.Valid {
			if err := AttachReference(ctx, db, ord.ID, Reference(ord.ID)); err != nil {
				return fmt.Errorf("attaching reference to order[%s]: %w", ord.ID, err)
			}
			ord.PaymentReference.String = Reference(ord.ID)
			ord.PaymentReference.Valid = true
		}

		ord, err = confirm(ctx, db, mailer, bg, ord.PaymentReference.String, true)
		if err != nil {
			return fmt.Errorf("overriding order[%s]: %w", orderID, err)
		}

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

// HandleReconcile sweeps stale pending orders and re-verifies each with
// the gateway through the same path as the synchronous trigger. Orders
// the gateway does not report settled are left pending: nothing is ever
// auto-failed.
func HandleReconcile(db *sqlx.DB, gw *paystack.Client, mailer Mailer, bg *background.Background, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		olderThan := time.Hour
		if age := r.URL.Query().Get("age"); age != "" {
			d, err := time.ParseDuration(age)
			if err != nil || d < 0 {
				return weberr.BadRequest(fmt.Errorf("invalid age %q", age))
			}
			olderThan = d
		}

		ords, err := ListStalePending(ctx, db, olderThan)
		if err != nil {
			return fmt.Errorf("listing stale orders: %w", err)
		}

		settled := 0
		for _, ord := range ords {
			ref := ord.PaymentReference.String

			ver, err := gw.Verify(ctx, ref)
			if err != nil {
				log.WithField("reference", ref).Warnf("reconcile: verify failed: %v", err)
				continue
			}
			if !ver.Success() {
				continue
			}

			if _, err := confirm(ctx, db, mailer, bg, ref, true); err != nil {
				log.WithField("reference", ref).Errorf("reconcile: confirm failed: %v", err)
				continue
			}
			settled++
		}

		out := struct {
			Checked int `json:"checked"`
			Settled int `json:"settled"`
		}{len(ords), settled}

		return web.Respond(ctx, w, out, http.StatusOK)
	}
}

// confirm normalizes every confirmation channel into "mark paid, then
// fulfill". The pair runs in one transaction: if the grant fails the
// status flip rolls back and a later delivery can own it again.
// Transition ownership decides who runs the side effects: only the
// caller whose update flipped pending to paid dispatches the
// confirmation email, bounding sends to one per order. Fulfillment
// itself may run again when refulfill is set (synchronous verify, admin
// override); the grantor's idempotency makes that a no-op.
func confirm(ctx context.Context, db *sqlx.DB, mailer Mailer, bg *background.Background, reference string, refulfill bool) (Order, error) {
	var (
		ord   Order
		owned bool
		prd   product.Product
	)

	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		var err error
		ord, owned, err = MarkPaid(ctx, tx, reference)
		if err != nil {
			return err
		}

		if !owned && (!refulfill || ord.Status != Paid) {
			return nil
		}

		prd, err = product.Fetch(ctx, tx, ord.ProductID)
		if err != nil {
			return fmt.Errorf("fetching product[%s] for fulfillment: %w", ord.ProductID, err)
		}

		acc := access.Access{
			ID:            validate.GenerateID(),
			CustomerEmail: ord.CustomerEmail,
			ProductID:     ord.ProductID,
			OrderID:       ord.ID,
			Type:          prd.Type,
			GrantedAt:     time.Now().UTC(),
		}

		if _, err := access.Grant(ctx, tx, acc); err != nil {
			return fmt.Errorf("the payment settled but access was not granted: %w", err)
		}

		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if owned {
		bg.Add(func() error {
			if err := mailer.SendPaymentConfirmation(ord, prd); err != nil {
				return fmt.Errorf("sending confirmation for order[%s]: %w", ord.ID, err)
			}
			return nil
		})
	}

	return ord, nil
}

func parseAmount(raw string, fallback int) (int, error) {
	if raw == "" {
		if fallback <= 0 {
			return 0, errors.New("amount must be greater than 0")
		}
		return fallback, nil
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New("invalid amount entered")
	}

	amount := int(math.Round(f * 100))
	if amount <= 0 {
		return 0, errors.New("amount must be greater than 0")
	}

	return amount, nil
}
