package test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"path"
	"testing"

	"github.com/smartsort/storefront/core/order"
	"github.com/smartsort/storefront/core/product"
	"github.com/smartsort/storefront/paystack"
)

// checkout drives POST /create-order and returns the payment reference
// parsed from the hosted-checkout redirect.
func (e *TestEnv) checkout(t *testing.T, productID string, email string, amount string) string {
	t.Helper()

	form := url.Values{"email": {email}}
	if amount != "" {
		form.Set("amount", amount)
	}

	w, err := e.NoRedirectClient().PostForm(e.URL+"/create-order/"+productID, form)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusSeeOther {
		t.Fatalf("can't create order: status code %s", w.Status)
	}

	loc := w.Header.Get("Location")
	if loc == "" {
		t.Fatal("checkout redirect carries no location")
	}

	return path.Base(loc)
}

func chargeSuccessEvent(reference string) []byte {
	evt := map[string]any{
		"event": "charge.success",
		"data":  map[string]any{"reference": reference},
	}

	b, _ := json.Marshal(evt)
	return b
}

// postWebhook delivers a notification body with the given signature.
func (e *TestEnv) postWebhook(t *testing.T, body []byte, signature string) *http.Response {
	t.Helper()

	r, err := http.NewRequest(http.MethodPost, e.URL+"/webhook", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set(paystack.SignatureHeader, signature)

	w, err := http.DefaultClient.Do(r)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

// postSignedWebhook delivers a correctly signed charge.success event.
func (e *TestEnv) postSignedWebhook(t *testing.T, reference string) *http.Response {
	t.Helper()

	body := chargeSuccessEvent(reference)
	return e.postWebhook(t, body, paystack.Sign(e.WebhookSecret, body))
}

func (e *TestEnv) fetchOrder(t *testing.T, reference string) order.Order {
	t.Helper()

	ord, err := order.FetchByReference(context.Background(), e.DB, reference)
	if err != nil {
		t.Fatalf("fetching order by reference[%s]: %v", reference, err)
	}
	return ord
}

func (e *TestEnv) countAccess(t *testing.T, email string, productID string) int {
	t.Helper()

	var n int
	const q = `SELECT COUNT(*) FROM user_access WHERE customer_email = $1 AND product_id = $2`
	if err := e.DB.Get(&n, q, email, productID); err != nil {
		t.Fatalf("counting access rows: %v", err)
	}
	return n
}

// adminRequest sends a request authenticated with HTTP Basic admin
// credentials.
func (e *TestEnv) adminRequest(t *testing.T, method string, path string) *http.Response {
	t.Helper()

	r, err := http.NewRequest(method, e.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	r.SetBasicAuth(e.AdminUser, e.AdminPass)

	w, err := http.DefaultClient.Do(r)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func (e *TestEnv) courseProduct(t *testing.T) string {
	t.Helper()

	for _, p := range e.Products {
		if p.Type == "course" {
			return p.ID
		}
	}
	t.Fatal("no seeded course product")
	return ""
}

func (e *TestEnv) serviceProduct(t *testing.T) string {
	t.Helper()

	for _, p := range e.Products {
		if p.Type == "service" {
			return p.ID
		}
	}
	t.Fatal("no seeded service product")
	return ""
}

func decodeJSON(t *testing.T, w *http.Response, out any) {
	t.Helper()

	defer w.Body.Close()
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
}

// createProduct adds a catalog entry through the admin API.
func (e *TestEnv) createProduct(t *testing.T, pn product.ProductNew) product.Product {
	t.Helper()

	b, err := json.Marshal(pn)
	if err != nil {
		t.Fatal(err)
	}

	r, err := http.NewRequest(http.MethodPost, e.URL+"/api/products", bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")
	r.SetBasicAuth(e.AdminUser, e.AdminPass)

	w, err := http.DefaultClient.Do(r)
	if err != nil {
		t.Fatal(err)
	}
	if w.StatusCode != http.StatusCreated {
		t.Fatalf("can't create product: status code %s", w.Status)
	}

	var p product.Product
	decodeJSON(t, w, &p)
	return p
}
