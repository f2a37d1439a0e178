package test

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/smartsort/storefront/core/order"
	"github.com/smartsort/storefront/core/product"
	"github.com/smartsort/storefront/paystack"
)

func TestWebhookFulfillment(t *testing.T) {
	env, err := NewTestEnv(t, "webhook")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	productID := env.courseProduct(t)
	ref := env.checkout(t, productID, "a@b.com", "")

	w := env.postSignedWebhook(t, ref)
	w.Body.Close()
	if w.StatusCode != http.StatusOK {
		t.Fatalf("webhook answered %d, want 200", w.StatusCode)
	}

	ord := env.fetchOrder(t, ref)
	if ord.Status != order.Paid {
		t.Fatalf("order has status %q, want paid", ord.Status)
	}

	if n := env.countAccess(t, "a@b.com", productID); n != 1 {
		t.Fatalf("found %d access rows, want 1", n)
	}

	// The access type is copied from the product at grant time.
	var accessType product.Type
	const q = `SELECT access_type FROM user_access WHERE customer_email = $1 AND product_id = $2`
	if err := env.DB.Get(&accessType, q, "a@b.com", productID); err != nil {
		t.Fatal(err)
	}
	if accessType != product.TypeCourse {
		t.Fatalf("access type %q, want course", accessType)
	}

	env.Drain(t)
	if n := env.Mailer.Sends(ord.ID); n != 1 {
		t.Fatalf("sent %d confirmation emails, want 1", n)
	}
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	env, err := NewTestEnv(t, "webhook_dup")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	productID := env.courseProduct(t)
	ref := env.checkout(t, productID, "a@b.com", "")

	for i := 0; i < 3; i++ {
		w := env.postSignedWebhook(t, ref)
		w.Body.Close()

		// Duplicates are benign no-ops, acknowledged so the gateway
		// stops retrying.
		if w.StatusCode != http.StatusOK {
			t.Fatalf("delivery %d answered %d, want 200", i, w.StatusCode)
		}
	}

	if ord := env.fetchOrder(t, ref); ord.Status != order.Paid {
		t.Fatalf("order has status %q, want paid", ord.Status)
	}
	if n := env.countAccess(t, "a@b.com", productID); n != 1 {
		t.Fatalf("found %d access rows after duplicates, want 1", n)
	}

	env.Drain(t)
	ord := env.fetchOrder(t, ref)
	if n := env.Mailer.Sends(ord.ID); n != 1 {
		t.Fatalf("sent %d confirmation emails after duplicates, want 1", n)
	}
}

func TestWebhookSignatureRejection(t *testing.T) {
	env, err := NewTestEnv(t, "webhook_sig")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	productID := env.courseProduct(t)
	ref := env.checkout(t, productID, "a@b.com", "")

	body := chargeSuccessEvent(ref)
	sig := paystack.Sign(env.WebhookSecret, body)

	tampered := make([]byte, len(body))
	copy(tampered, body)
	tampered[len(tampered)/2] ^= 0x01

	cases := []struct {
		name string
		body []byte
		sig  string
	}{
		{"tampered body", tampered, sig},
		{"missing signature", body, ""},
		{"wrong signature", body, paystack.Sign("another secret", body)},
	}

	for _, c := range cases {
		w := env.postWebhook(t, c.body, c.sig)
		w.Body.Close()

		if w.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status code %d, want 400", c.name, w.StatusCode)
		}
	}

	if ord := env.fetchOrder(t, ref); ord.Status != order.Pending {
		t.Fatalf("order mutated to %q by rejected webhooks", ord.Status)
	}
	if n := env.countAccess(t, "a@b.com", productID); n != 0 {
		t.Fatalf("found %d access rows after rejected webhooks, want 0", n)
	}
}

func TestWebhookUnknownReference(t *testing.T) {
	env, err := NewTestEnv(t, "webhook_unknown")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	w := env.postSignedWebhook(t, "SMARTSORT_ffffffff-0000-0000-0000-000000000000")
	w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("unknown reference answered %d, want 200", w.StatusCode)
	}

	var n int
	if err := env.DB.Get(&n, `SELECT COUNT(*) FROM user_access`); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("unknown reference created %d access rows", n)
	}
}

func TestWebhookSignedMalformedBody(t *testing.T) {
	env, err := NewTestEnv(t, "webhook_malformed")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	productID := env.courseProduct(t)
	ref := env.checkout(t, productID, "a@b.com", "")

	// Authenticated garbage: the sender holds the secret, so retrying
	// the delivery would not help. Acknowledge and move on.
	body := []byte(`{"event":"charge.suc`)
	w := env.postWebhook(t, body, paystack.Sign(env.WebhookSecret, body))
	w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("malformed body answered %d, want 200", w.StatusCode)
	}
	if ord := env.fetchOrder(t, ref); ord.Status != order.Pending {
		t.Fatalf("order mutated to %q by a malformed body", ord.Status)
	}
	if n := env.countAccess(t, "a@b.com", productID); n != 0 {
		t.Fatalf("found %d access rows after malformed body, want 0", n)
	}
}

func TestWebhookOversizedBody(t *testing.T) {
	env, err := NewTestEnv(t, "webhook_oversized")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	body := bytes.Repeat([]byte("a"), 2<<20)
	w := env.postWebhook(t, body, paystack.Sign(env.WebhookSecret, body))
	w.Body.Close()

	if w.StatusCode != http.StatusBadRequest {
		t.Fatalf("oversized body answered %d, want 400", w.StatusCode)
	}
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	env, err := NewTestEnv(t, "webhook_other")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ref := env.checkout(t, env.courseProduct(t), "a@b.com", "")

	body := []byte(`{"event":"charge.dispute.create","data":{"reference":"` + ref + `"}}`)
	w := env.postWebhook(t, body, paystack.Sign(env.WebhookSecret, body))
	w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("other event answered %d, want 200", w.StatusCode)
	}
	if ord := env.fetchOrder(t, ref); ord.Status != order.Pending {
		t.Fatalf("order mutated to %q by a non-charge event", ord.Status)
	}
}
