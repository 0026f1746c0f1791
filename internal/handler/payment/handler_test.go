package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/adeyemi/chopbot/internal/model/order"
	paymentsvc "github.com/adeyemi/chopbot/internal/service/payment"
	"github.com/adeyemi/chopbot/internal/service/reconcile"
)

type fakeGateway struct {
	statuses map[string]string
}

func (g *fakeGateway) Initialize(context.Context, int, string, string) (string, error) {
	return "", errors.New("not used")
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (string, error) {
	return g.statuses[reference], nil
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastClear(string) {}

func setup(t *testing.T, statuses map[string]string) (*chi.Mux, *order.MemoryStore) {
	t.Helper()
	store := order.NewMemoryStore()
	reconciler := reconcile.New(store, &fakeGateway{statuses: statuses}, noopBroadcaster{}, zap.NewNop())
	handler := New(reconciler, store, zap.NewNop())

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, store
}

func seedOrderWithReference(t *testing.T, store *order.MemoryStore, reference string) {
	t.Helper()
	now := time.Now().UTC()
	o := order.Order{
		ID:           "ord-1",
		SessionToken: "tok-1",
		Items:        []order.LineItem{{MenuItemID: "suya", Name: "Beef Suya", Price: 1500, Quantity: 1}},
		Total:        1500,
		Status:       order.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreatePending(context.Background(), o); err != nil {
		t.Fatalf("CreatePending err: %v", err)
	}
	if err := store.SetPaymentReference(context.Background(), o.ID, reference); err != nil {
		t.Fatalf("SetPaymentReference err: %v", err)
	}
}

func TestCallbackSuccessRedirectsToReceipt(t *testing.T) {
	r, store := setup(t, map[string]string{"chop-ord-1": paymentsvc.StatusSuccess})
	seedOrderWithReference(t, store, "chop-ord-1")

	req := httptest.NewRequest(http.MethodGet, "/payment/callback?reference=chop-ord-1", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.Code)
	}
	if got := resp.Header().Get("Location"); got != "/receipt?reference=chop-ord-1" {
		t.Fatalf("unexpected redirect: %s", got)
	}

	o, err := store.FindByReference(context.Background(), "chop-ord-1")
	if err != nil || o.Status != order.StatusPaid {
		t.Fatalf("order should be paid, got %v %v", o.Status, err)
	}
}

func TestCallbackUnknownReferenceRedirectsToError(t *testing.T) {
	r, _ := setup(t, map[string]string{"mystery": paymentsvc.StatusSuccess})

	req := httptest.NewRequest(http.MethodGet, "/payment/callback?reference=mystery", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.Code)
	}
	if got := resp.Header().Get("Location"); got != "/?payment=error" {
		t.Fatalf("unexpected redirect: %s", got)
	}
}

func TestCallbackUnconfirmedChargeRedirectsToError(t *testing.T) {
	r, store := setup(t, map[string]string{"chop-ord-1": "abandoned"})
	seedOrderWithReference(t, store, "chop-ord-1")

	req := httptest.NewRequest(http.MethodGet, "/payment/callback?reference=chop-ord-1", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if got := resp.Header().Get("Location"); got != "/?payment=error" {
		t.Fatalf("unexpected redirect: %s", got)
	}
	o, _ := store.FindByReference(context.Background(), "chop-ord-1")
	if o.Status != order.StatusPending {
		t.Fatalf("order must stay pending, got %s", o.Status)
	}
}

func TestReceiptReturnsPaidOrder(t *testing.T) {
	r, store := setup(t, map[string]string{"chop-ord-1": paymentsvc.StatusSuccess})
	seedOrderWithReference(t, store, "chop-ord-1")
	if _, _, err := store.MarkPaid(context.Background(), "chop-ord-1"); err != nil {
		t.Fatalf("MarkPaid err: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/receipt?reference=chop-ord-1", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var got order.Order
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if got.ID != "ord-1" || got.Status != order.StatusPaid || got.Total != 1500 {
		t.Fatalf("unexpected receipt: %+v", got)
	}
}

func TestReceiptPendingOrderIsNotFound(t *testing.T) {
	r, store := setup(t, nil)
	seedOrderWithReference(t, store, "chop-ord-1")

	req := httptest.NewRequest(http.MethodGet, "/receipt?reference=chop-ord-1", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unpaid order, got %d", resp.Code)
	}
}

func TestReceiptUnknownReferenceIsNotFound(t *testing.T) {
	r, _ := setup(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/receipt?reference=missing", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
