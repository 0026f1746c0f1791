package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/adeyemi/chopbot/internal/model/order"
	"github.com/adeyemi/chopbot/internal/service/payment"
)

type fakeGateway struct {
	statuses map[string]string
	err      error
}

func (g *fakeGateway) Initialize(context.Context, int, string, string) (string, error) {
	return "", errors.New("not used")
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.statuses[reference], nil
}

type fakeBroadcaster struct {
	tokens []string
}

func (b *fakeBroadcaster) BroadcastClear(token string) { b.tokens = append(b.tokens, token) }

func seedPending(t *testing.T, store *order.MemoryStore, token, reference string) order.Order {
	t.Helper()
	o := order.Order{
		ID:           "ord-1",
		SessionToken: token,
		Items:        []order.LineItem{{MenuItemID: "suya", Name: "Beef Suya", Price: 1500, Quantity: 2}},
		Total:        3000,
		Status:       order.StatusPending,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := store.CreatePending(context.Background(), o); err != nil {
		t.Fatalf("CreatePending err: %v", err)
	}
	if err := store.SetPaymentReference(context.Background(), o.ID, reference); err != nil {
		t.Fatalf("SetPaymentReference err: %v", err)
	}
	return o
}

func TestReconcileMarksOrderPaidAndBroadcastsOnce(t *testing.T) {
	store := order.NewMemoryStore()
	seedPending(t, store, "tok-1", "chop-ord-1")
	gateway := &fakeGateway{statuses: map[string]string{"chop-ord-1": payment.StatusSuccess}}
	bus := &fakeBroadcaster{}
	svc := New(store, gateway, bus, zap.NewNop())

	paid, err := svc.Reconcile(context.Background(), "chop-ord-1")
	if err != nil {
		t.Fatalf("Reconcile err: %v", err)
	}
	if paid.Status != order.StatusPaid {
		t.Fatalf("expected paid, got %s", paid.Status)
	}
	if len(bus.tokens) != 1 || bus.tokens[0] != "tok-1" {
		t.Fatalf("expected one clear broadcast for tok-1, got %v", bus.tokens)
	}
}

func TestReconcileDuplicateCallbackIsIdempotent(t *testing.T) {
	store := order.NewMemoryStore()
	seedPending(t, store, "tok-1", "chop-ord-1")
	gateway := &fakeGateway{statuses: map[string]string{"chop-ord-1": payment.StatusSuccess}}
	bus := &fakeBroadcaster{}
	svc := New(store, gateway, bus, zap.NewNop())

	for i := 0; i < 3; i++ {
		paid, err := svc.Reconcile(context.Background(), "chop-ord-1")
		if err != nil {
			t.Fatalf("Reconcile #%d err: %v", i+1, err)
		}
		if paid.Status != order.StatusPaid {
			t.Fatalf("Reconcile #%d: expected paid, got %s", i+1, paid.Status)
		}
	}
	if len(bus.tokens) != 1 {
		t.Fatalf("broadcast must fire once per transition, got %d", len(bus.tokens))
	}
}

func TestReconcileUnknownReferenceMutatesNothing(t *testing.T) {
	store := order.NewMemoryStore()
	seedPending(t, store, "tok-1", "chop-ord-1")
	gateway := &fakeGateway{statuses: map[string]string{"mystery": payment.StatusSuccess}}
	bus := &fakeBroadcaster{}
	svc := New(store, gateway, bus, zap.NewNop())

	_, err := svc.Reconcile(context.Background(), "mystery")
	if !errors.Is(err, order.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(bus.tokens) != 0 {
		t.Fatalf("no broadcast expected, got %v", bus.tokens)
	}
	if o, err := store.FindByReference(context.Background(), "chop-ord-1"); err != nil || o.Status != order.StatusPending {
		t.Fatalf("seeded order must stay pending, got %v %v", o.Status, err)
	}
}

func TestReconcileVerificationFailureMutatesNothing(t *testing.T) {
	store := order.NewMemoryStore()
	seedPending(t, store, "tok-1", "chop-ord-1")
	gateway := &fakeGateway{statuses: map[string]string{"chop-ord-1": "abandoned"}}
	bus := &fakeBroadcaster{}
	svc := New(store, gateway, bus, zap.NewNop())

	_, err := svc.Reconcile(context.Background(), "chop-ord-1")
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
	if o, _ := store.FindByReference(context.Background(), "chop-ord-1"); o.Status != order.StatusPending {
		t.Fatalf("order must stay pending, got %s", o.Status)
	}
	if len(bus.tokens) != 0 {
		t.Fatalf("no broadcast expected, got %v", bus.tokens)
	}
}

func TestReconcileGatewayErrorPropagates(t *testing.T) {
	store := order.NewMemoryStore()
	seedPending(t, store, "tok-1", "chop-ord-1")
	gwErr := &payment.GatewayError{Message: "provider unreachable"}
	svc := New(store, &fakeGateway{err: gwErr}, &fakeBroadcaster{}, zap.NewNop())

	_, err := svc.Reconcile(context.Background(), "chop-ord-1")
	var gw *payment.GatewayError
	if !errors.As(err, &gw) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if o, _ := store.FindByReference(context.Background(), "chop-ord-1"); o.Status != order.StatusPending {
		t.Fatalf("order must stay pending, got %s", o.Status)
	}
}

func TestReconcileCancelledOrderStaysCancelled(t *testing.T) {
	store := order.NewMemoryStore()
	o := seedPending(t, store, "tok-1", "chop-ord-1")
	if err := store.DeletePending(context.Background(), o.SessionToken); err != nil {
		t.Fatalf("DeletePending err: %v", err)
	}
	gateway := &fakeGateway{statuses: map[string]string{"chop-ord-1": payment.StatusSuccess}}
	bus := &fakeBroadcaster{}
	svc := New(store, gateway, bus, zap.NewNop())

	_, err := svc.Reconcile(context.Background(), "chop-ord-1")
	if !errors.Is(err, order.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for cancelled order, got %v", err)
	}
	if len(bus.tokens) != 0 {
		t.Fatalf("no broadcast expected, got %v", bus.tokens)
	}
}
