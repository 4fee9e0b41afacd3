// Package gateway talks to the hosted payment gateway: order creation,
// status lookups and refunds.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway order states.
const (
	OrderActive  = "ACTIVE"
	OrderPaid    = "PAID"
	OrderExpired = "EXPIRED"
)

// Gateway refund states.
const (
	RefundPending   = "PENDING"
	RefundSuccess   = "SUCCESS"
	RefundCancelled = "CANCELLED"
	RefundOnHold    = "ONHOLD"
)

type Customer struct {
	ID    string `json:"customer_id"`
	Phone string `json:"customer_phone,omitempty"`
	Email string `json:"customer_email,omitempty"`
}

// Request amounts are sent as JSON numbers; the gateway rejects quoted amounts.
type CreateOrderRequest struct {
	OrderID  string   `json:"order_id"`
	Amount   float64  `json:"order_amount"`
	Currency string   `json:"order_currency"`
	Customer Customer `json:"customer_details"`
	Note     string   `json:"order_note,omitempty"`
}

type Order struct {
	GatewayID        string          `json:"cf_order_id"`
	OrderID          string          `json:"order_id"`
	Amount           decimal.Decimal `json:"order_amount"`
	Currency         string          `json:"order_currency"`
	Status           string          `json:"order_status"`
	PaymentSessionID string          `json:"payment_session_id"`
}

type RefundRequest struct {
	Amount   float64 `json:"refund_amount"`
	RefundID string  `json:"refund_id"`
	Note     string  `json:"refund_note,omitempty"`
}

type Refund struct {
	RefundID string          `json:"refund_id"`
	OrderID  string          `json:"order_id"`
	Amount   decimal.Decimal `json:"refund_amount"`
	Status   string          `json:"refund_status"`
}

// Client is the subset of the gateway API the settlement flows use.
type Client interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	Refund(ctx context.Context, orderID string, req RefundRequest) (*Refund, error)
	// GetRefund returns nil, nil when the gateway has no such refund.
	GetRefund(ctx context.Context, orderID, refundID string) (*Refund, error)
}

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Type       string `json:"type"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	APIVersion   string
	Timeout      time.Duration
	MaxRetries   int
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration
}

type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
}

func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPClient{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

func (c *HTTPClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	var out Order
	if err := c.do(ctx, http.MethodPost, "/orders", "order-"+req.OrderID, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var out Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refund is idempotent on req.RefundID, which is also sent as the idempotency key.
func (c *HTTPClient) Refund(ctx context.Context, orderID string, req RefundRequest) (*Refund, error) {
	var out Refund
	path := "/orders/" + url.PathEscape(orderID) + "/refunds"
	if err := c.do(ctx, http.MethodPost, path, req.RefundID, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetRefund(ctx context.Context, orderID, refundID string) (*Refund, error) {
	var out Refund
	path := "/orders/" + url.PathEscape(orderID) + "/refunds/" + url.PathEscape(refundID)
	err := c.do(ctx, http.MethodGet, path, "", nil, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends the request, retrying network errors, 429 and 5xx responses with
// exponential backoff. The same request id and idempotency key are reused
// across attempts.
func (c *HTTPClient) do(ctx context.Context, method, path, idempotencyKey string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = b
	}
	requestID := uuid.New().String()

	var lastErr error
	delay := c.cfg.Backoff
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("gateway %s %s attempt %d failed: %v", method, path, attempt, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		err := c.once(ctx, method, path, requestID, idempotencyKey, body, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

func (c *HTTPClient) once(ctx context.Context, method, path, requestID, idempotencyKey string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-client-id", c.cfg.ClientID)
	req.Header.Set("x-client-secret", c.cfg.ClientSecret)
	req.Header.Set("x-api-version", c.cfg.APIVersion)
	req.Header.Set("x-request-id", requestID)
	if idempotencyKey != "" {
		req.Header.Set("x-idempotency-key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)
