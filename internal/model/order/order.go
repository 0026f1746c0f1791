package order

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of an order. Pending orders may move to paid
// or cancelled; paid and cancelled are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// LineItem is a menu item snapshotted into an order at checkout time. Name
// and price are copied so later menu edits never change what was sold.
type LineItem struct {
	MenuItemID string `json:"menuItemId"`
	Name       string `json:"name"`
	Price      int    `json:"price"`
	Quantity   int    `json:"quantity"`
}

// Order is a durable record of a checkout attempt.
type Order struct {
	ID               string     `json:"id"`
	SessionToken     string     `json:"sessionToken"`
	Items            []LineItem `json:"items"`
	Total            int        `json:"total"`
	Status           Status     `json:"status"`
	PaymentReference string     `json:"paymentReference,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

var (
	// ErrNotFound indicates the requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrPendingExists indicates the session already has a pending order.
	ErrPendingExists = errors.New("session already has a pending order")
	// ErrReferenceSet indicates the order already carries a payment reference.
	ErrReferenceSet = errors.New("payment reference already set")
)

// Store defines behavior for persisting orders. Status transitions are
// conditional on the current status so that the conversation path and the
// payment reconciliation path can mutate the same order without blind
// overwrites.
type Store interface {
	// CreatePending inserts a new pending order. Fails with
	// ErrPendingExists when the session already has one.
	CreatePending(ctx context.Context, o Order) error
	// FindPending returns the session's pending order, if any.
	FindPending(ctx context.Context, sessionToken string) (Order, error)
	// FindByReference returns the order carrying the payment reference.
	FindByReference(ctx context.Context, reference string) (Order, error)
	// SetPaymentReference assigns a reference to a pending order. The
	// reference is immutable once set.
	SetPaymentReference(ctx context.Context, orderID, reference string) error
	// MarkPaid transitions the order with the given reference from pending
	// to paid. Returns the order and whether this call performed the
	// transition; an already-paid order is a no-op with transitioned=false.
	MarkPaid(ctx context.Context, reference string) (Order, bool, error)
	// DeletePending removes all pending orders for the session. Deleting
	// when none exist is not an error.
	DeletePending(ctx context.Context, sessionToken string) error
	// DeletePendingByID removes a single order only while it is still
	// pending. Used as the compensating action for a failed checkout.
	DeletePendingByID(ctx context.Context, orderID string) error
	// ListCompleted returns the session's non-pending orders, newest first.
	ListCompleted(ctx context.Context, sessionToken string) ([]Order, error)
}
