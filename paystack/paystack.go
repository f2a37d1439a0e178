package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to the Paystack transaction API. All amounts cross the
// wire in minor units (kobo).
type Client struct {
	secret string
	url    string
	http   *http.Client
}

func New(secret string, url string, timeout time.Duration) *Client {
	return &Client{
		secret: secret,
		url:    url,
		http:   &http.Client{Timeout: timeout},
	}
}

// Authorization is the usable part of a successful transaction
// initialization: where to send the customer's browser.
type Authorization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Verification is the typed view of a transaction verify call. Status is
// the gateway-side charge status ("success", "failed", "abandoned", ...).
type Verification struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int    `json:"amount"`
}

// Success reports whether the gateway considers the charge settled.
func (v Verification) Success() bool {
	return v.Status == "success"
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize creates a remote transaction and returns the hosted checkout
// authorization. A gateway-level decline surfaces as an error.
func (c *Client) Initialize(ctx context.Context, email string, amount int, reference string, callbackURL string) (Authorization, error) {
	body := struct {
		Email       string `json:"email"`
		Amount      int    `json:"amount"`
		Reference   string `json:"reference"`
		CallbackURL string `json:"callback_url"`
	}{
		Email:       email,
		Amount:      amount,
		Reference:   reference,
		CallbackURL: callbackURL,
	}

	var auth Authorization
	if err := c.post(ctx, "/transaction/initialize", body, &auth); err != nil {
		return Authorization{}, fmt.Errorf("initializing transaction[%s]: %w", reference, err)
	}

	return auth, nil
}

// Verify fetches the gateway-side state of the transaction bound to the
// reference.
func (c *Client) Verify(ctx context.Context, reference string) (Verification, error) {
	var ver Verification
	if err := c.get(ctx, "/transaction/verify/"+reference, &ver); err != nil {
		return Verification{}, fmt.Errorf("verifying transaction[%s]: %w", reference, err)
	}

	return ver, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	r.Header.Set("Content-Type", "application/json")

	return c.do(r, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	return c.do(r, out)
}

func (c *Client) do(r *http.Request, out interface{}) error {
	r.Header.Set("Authorization", "Bearer "+c.secret)

	w, err := c.http.Do(r)
	if err != nil {
		return err
	}
	defer w.Body.Close()

	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if !env.Status {
		return fmt.Errorf("gateway declined: %s", env.Message)
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}

	return nil
}
