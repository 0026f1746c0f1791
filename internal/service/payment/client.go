// Package payment wraps the external payment provider's REST API behind a
// small initialize/verify contract.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusSuccess is the provider's verification status for a completed charge.
const StatusSuccess = "success"

// GatewayError reports a failed interaction with the payment provider.
// Message, when set, is safe to show to the user; Err carries the transport
// detail for logs.
type GatewayError struct {
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway: %s: %v", e.Message, e.Err)
	}
	return "payment gateway: " + e.Message
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Client is the contract the checkout and reconciliation paths depend on.
type Client interface {
	// Initialize registers a charge of amountMinor (minor currency units)
	// under the reference and returns the provider's authorization URL.
	Initialize(ctx context.Context, amountMinor int, reference, callbackURL string) (string, error)
	// Verify returns the provider's status for the reference. An unknown
	// reference is a non-success status, not an error.
	Verify(ctx context.Context, reference string) (string, error)
}

// Config holds the provider credentials and endpoints.
type Config struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

// HTTPClient talks to a Paystack-compatible transaction API.
type HTTPClient struct {
	config Config
	http   *http.Client
}

// NewHTTPClient creates a provider client with a bounded request timeout.
func NewHTTPClient(config Config) *HTTPClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.paystack.co"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &HTTPClient{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
	}
}

type initializeRequest struct {
	Amount      int    `json:"amount"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
	} `json:"data"`
}

// Initialize registers the charge and returns the authorization URL.
func (c *HTTPClient) Initialize(ctx context.Context, amountMinor int, reference, callbackURL string) (string, error) {
	body, err := json.Marshal(initializeRequest{
		Amount:      amountMinor,
		Reference:   reference,
		CallbackURL: callbackURL,
	})
	if err != nil {
		return "", &GatewayError{Message: "could not encode charge request", Err: err}
	}

	var resp initializeResponse
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", bytes.NewReader(body), &resp); err != nil {
		return "", err
	}
	if !resp.Status || resp.Data.AuthorizationURL == "" {
		return "", &GatewayError{Message: nonEmpty(resp.Message, "charge was not accepted")}
	}
	return resp.Data.AuthorizationURL, nil
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status string `json:"status"`
	} `json:"data"`
}

// Verify returns the provider's transaction status for the reference.
func (c *HTTPClient) Verify(ctx context.Context, reference string) (string, error) {
	var resp verifyResponse
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &resp); err != nil {
		return "", err
	}
	// A false envelope status with a parsed body means the provider does
	// not know the reference; that is a non-success outcome for the caller
	// to interpret, not a gateway failure.
	return resp.Data.Status, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body *bytes.Reader, out any) error {
	var reader io.Reader
	if body != nil {
		reader = body
	}
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return &GatewayError{Message: "could not build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.config.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return &GatewayError{Message: "payment provider unreachable", Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusInternalServerError {
		return &GatewayError{Message: fmt.Sprintf("payment provider returned %d", res.StatusCode)}
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &GatewayError{Message: "malformed provider response", Err: err}
	}
	return nil
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
