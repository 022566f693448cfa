// Package gateway wraps the boleto payment gateway HTTP API. The gateway is
// a black box: this client only knows the payment-creation contract and the
// shape of its responses. Webhook callbacks are handled by internal/billing.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
)

const billingTypeBoleto = "BOLETO"

var (
	// ErrUnavailable indicates the gateway could not be reached or answered 5xx.
	ErrUnavailable = errors.New("gateway: unavailable")
	// ErrRejected indicates the gateway refused the request (4xx).
	ErrRejected = errors.New("gateway: request rejected")
)

// Client talks to the payment gateway.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewClient constructs a gateway client with a fixed 30s request timeout and
// bounded exponential-backoff retries (3 attempts, 2s base, 10s cap).
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries:      2,
		initialInterval: 2 * time.Second,
		maxInterval:     10 * time.Second,
	}
}

// CreateCustomerInput carries the fields the gateway needs to register a payer.
type CreateCustomerInput struct {
	Name    string
	CPFCNPJ string
	Email   string
	Phone   string
}

// Customer is the remote customer record.
type Customer struct {
	ID string `json:"id"`
}

// CreatePaymentInput describes one boleto to issue.
type CreatePaymentInput struct {
	CustomerID        string
	Value             decimal.Decimal
	DueDate           time.Time
	Description       string
	ExternalReference string
}

// Payment is the remote billing record returned on creation.
type Payment struct {
	ID          string `json:"id"`
	BankSlipURL string `json:"bankSlipUrl"`
	InvoiceURL  string `json:"invoiceUrl"`
	Status      string `json:"status"`
}

// CreateCustomer registers a customer with the gateway.
func (c *Client) CreateCustomer(ctx context.Context, input CreateCustomerInput) (*Customer, error) {
	payload := map[string]string{
		"name":    input.Name,
		"cpfCnpj": onlyDigits(input.CPFCNPJ),
		"email":   input.Email,
	}
	if input.Phone != "" {
		payload["phone"] = onlyDigits(input.Phone)
	}

	var customer Customer
	if err := c.do(ctx, http.MethodPost, "customers", payload, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CreatePayment issues one boleto.
func (c *Client) CreatePayment(ctx context.Context, input CreatePaymentInput) (*Payment, error) {
	payload := map[string]any{
		"customer":          input.CustomerID,
		"billingType":       billingTypeBoleto,
		"value":             json.Number(input.Value.StringFixed(2)),
		"dueDate":           input.DueDate.Format("2006-01-02"),
		"description":       input.Description,
		"externalReference": input.ExternalReference,
	}

	var payment Payment
	if err := c.do(ctx, http.MethodPost, "payments", payload, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPayment fetches a payment by its remote id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "payments/"+paymentID, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// CancelPayment removes a payment at the gateway.
func (c *Client) CancelPayment(ctx context.Context, paymentID string) error {
	return c.do(ctx, http.MethodDelete, "payments/"+paymentID, nil, nil)
}

// do performs one gateway call with retries. 5xx responses and transport
// failures are retried; 4xx responses are permanent rejections.
func (c *Client) do(ctx context.Context, method, endpoint string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("gateway: marshal payload: %w", err)
		}
	}

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s/%s", c.baseURL, endpoint), bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("access_token", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		case resp.StatusCode >= 400:
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return backoff.Permanent(fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, detail))
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("gateway: decode response: %w", err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	policy.MaxInterval = c.maxInterval

	return backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx))
}

func onlyDigits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
