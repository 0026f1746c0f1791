package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInitializeReturnsAuthorizationURL(t *testing.T) {
	var gotAuth string
	var gotBody initializeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/initialize" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Authorization URL created",
			"data":    map[string]string{"authorization_url": "https://checkout.example/abc"},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(Config{SecretKey: "sk_test", BaseURL: srv.URL})
	url, err := client.Initialize(context.Background(), 250000, "chop-1", "http://localhost/payment/callback")
	if err != nil {
		t.Fatalf("Initialize err: %v", err)
	}
	if url != "https://checkout.example/abc" {
		t.Fatalf("unexpected url: %s", url)
	}
	if gotAuth != "Bearer sk_test" {
		t.Fatalf("unexpected auth header: %s", gotAuth)
	}
	if gotBody.Amount != 250000 || gotBody.Reference != "chop-1" || gotBody.CallbackURL != "http://localhost/payment/callback" {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
}

func TestInitializeMissingURLIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": true, "data": map[string]string{}})
	}))
	defer srv.Close()

	client := NewHTTPClient(Config{SecretKey: "sk_test", BaseURL: srv.URL})
	_, err := client.Initialize(context.Background(), 100, "chop-1", "http://localhost/cb")
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
}

func TestInitializeDeclinedSurfacesProviderMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "Invalid amount"})
	}))
	defer srv.Close()

	client := NewHTTPClient(Config{SecretKey: "sk_test", BaseURL: srv.URL})
	_, err := client.Initialize(context.Background(), 0, "chop-1", "http://localhost/cb")
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gwErr.Message != "Invalid amount" {
		t.Fatalf("provider message should be kept: %q", gwErr.Message)
	}
}

func TestInitializeServerErrorIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPClient(Config{SecretKey: "sk_test", BaseURL: srv.URL})
	if _, err := client.Initialize(context.Background(), 100, "chop-1", "http://localhost/cb"); err == nil {
		t.Fatal("expected error for 5xx response")
	}
}

func TestInitializeUnreachableProviderIsGatewayError(t *testing.T) {
	client := NewHTTPClient(Config{SecretKey: "sk_test", BaseURL: "http://127.0.0.1:1"})
	_, err := client.Initialize(context.Background(), 100, "chop-1", "http://localhost/cb")
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
}

func TestVerifyReturnsTransactionStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/chop-1" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data":   map[string]string{"status": "success"},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(Config{SecretKey: "sk_test", BaseURL: srv.URL})
	status, err := client.Verify(context.Background(), "chop-1")
	if err != nil {
		t.Fatalf("Verify err: %v", err)
	}
	if status != StatusSuccess {
		t.Fatalf("unexpected status: %s", status)
	}
}

func TestVerifyUnknownReferenceIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "Transaction reference not found"})
	}))
	defer srv.Close()

	client := NewHTTPClient(Config{SecretKey: "sk_test", BaseURL: srv.URL})
	status, err := client.Verify(context.Background(), "mystery")
	if err != nil {
		t.Fatalf("unknown reference must not be an error, got %v", err)
	}
	if status == StatusSuccess {
		t.Fatalf("unknown reference must not be success, got %q", status)
	}
}
