// Package reconcile applies asynchronous payment-provider callbacks to the
// order store exactly once. A callback is never trusted on its own: the
// reference is re-verified against the provider before any state changes.
package reconcile

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/adeyemi/chopbot/internal/model/order"
	"github.com/adeyemi/chopbot/internal/service/payment"
)

// ErrVerificationFailed indicates the provider did not confirm the charge.
// The order store is left untouched.
var ErrVerificationFailed = errors.New("payment verification failed")

// Broadcaster pushes the clear-session signal to live connections.
type Broadcaster interface {
	BroadcastClear(token string)
}

// Service processes inbound payment callbacks.
type Service struct {
	orders  order.Store
	gateway payment.Client
	notify  Broadcaster
	timeout time.Duration
	log     *zap.Logger
}

// New creates the reconciliation service.
func New(orders order.Store, gateway payment.Client, notify Broadcaster, log *zap.Logger) *Service {
	return &Service{
		orders:  orders,
		gateway: gateway,
		notify:  notify,
		timeout: 10 * time.Second,
		log:     log.Named("reconcile"),
	}
}

// Reconcile verifies the reference with the provider and, on success, moves
// the matching order from pending to paid. Duplicate callbacks are no-ops:
// the transition happens at most once, and only a real transition triggers
// the clear-session broadcast. Returns order.ErrNotFound when no order
// carries the reference.
func (s *Service) Reconcile(ctx context.Context, reference string) (order.Order, error) {
	if reference == "" {
		return order.Order{}, order.ErrNotFound
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	status, err := s.gateway.Verify(gwCtx, reference)
	if err != nil {
		s.log.Error("verify payment", zap.String("reference", reference), zap.Error(err))
		return order.Order{}, err
	}
	if status != payment.StatusSuccess {
		s.log.Info("payment not confirmed",
			zap.String("reference", reference), zap.String("status", status))
		return order.Order{}, ErrVerificationFailed
	}

	o, transitioned, err := s.orders.MarkPaid(ctx, reference)
	if err != nil {
		s.log.Warn("mark paid", zap.String("reference", reference), zap.Error(err))
		return order.Order{}, err
	}

	if transitioned {
		s.log.Info("order paid",
			zap.String("order", o.ID), zap.String("reference", reference))
		// Fire-and-forget: a failed delivery never rolls back the order.
		s.notify.BroadcastClear(o.SessionToken)
	}
	return o, nil
}
