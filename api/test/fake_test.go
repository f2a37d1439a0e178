package test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/smartsort/storefront/api/web"
	"github.com/smartsort/storefront/core/order"
	"github.com/smartsort/storefront/core/product"
)

// fakeGateway emulates the transaction API: initialize hands back a
// hosted-checkout URL carrying the reference, verify reports whichever
// charge state the test settled.
type fakeGateway struct {
	srv *httptest.Server

	mu          sync.Mutex
	initialized map[string]int
	settled     map[string]bool
	declineInit bool
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()

	g := &fakeGateway{
		initialized: make(map[string]int),
		settled:     make(map[string]bool),
	}

	initialize := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email     string `json:"email"`
			Amount    int    `json:"amount"`
			Reference string `json:"reference"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			web.Respond(context.Background(), w, nil, http.StatusBadRequest)
			return
		}

		g.mu.Lock()
		decline := g.declineInit
		if !decline {
			g.initialized[body.Reference] = body.Amount
		}
		g.mu.Unlock()

		if decline {
			out := map[string]any{"status": false, "message": "Invalid key"}
			web.Respond(context.Background(), w, out, http.StatusBadRequest)
			return
		}

		out := map[string]any{
			"status":  true,
			"message": "Authorization URL created",
			"data": map[string]any{
				"authorization_url": g.srv.URL + "/pay/" + body.Reference,
				"access_code":       "ac_" + body.Reference,
				"reference":         body.Reference,
			},
		}
		web.Respond(context.Background(), w, out, http.StatusOK)
	})

	verify := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ref := mux.Vars(r)["reference"]

		g.mu.Lock()
		amount := g.initialized[ref]
		status := "abandoned"
		if g.settled[ref] {
			status = "success"
		}
		g.mu.Unlock()

		out := map[string]any{
			"status":  true,
			"message": "Verification successful",
			"data":    map[string]any{"status": status, "reference": ref, "amount": amount},
		}
		web.Respond(context.Background(), w, out, http.StatusOK)
	})

	r := mux.NewRouter()
	r.Handle("/transaction/initialize", initialize).Methods(http.MethodPost)
	r.Handle("/transaction/verify/{reference}", verify).Methods(http.MethodGet)

	g.srv = httptest.NewServer(r)
	return g
}

// Settle marks the remote charge successful, as if the customer paid on
// the hosted page.
func (g *fakeGateway) Settle(reference string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settled[reference] = true
}

// DeclineInitialize makes every following initialize call fail at the
// gateway level.
func (g *fakeGateway) DeclineInitialize() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.declineInit = true
}

// InitializedAmount reports the amount the checkout sent for a
// reference.
func (g *fakeGateway) InitializedAmount(reference string) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	amount, ok := g.initialized[reference]
	return amount, ok
}

// fakeMailer records confirmation sends instead of talking to SMTP.
type fakeMailer struct {
	mu    sync.Mutex
	sends map[string]int

	fail bool
}

func (m *fakeMailer) SendPaymentConfirmation(ord order.Order, prd product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sends == nil {
		m.sends = make(map[string]int)
	}
	m.sends[ord.ID]++

	if m.fail {
		return context.DeadlineExceeded
	}
	return nil
}

// Sends reports how many confirmations were dispatched for an order.
func (m *fakeMailer) Sends(orderID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sends[orderID]
}

// Fail makes following sends return an error.
func (m *fakeMailer) Fail() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = true
}
