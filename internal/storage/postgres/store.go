// Package postgres persists orders in PostgreSQL. Status transitions are
// expressed as status-qualified UPDATEs so concurrent actors (the
// conversation path and the payment reconciliation path) can never clobber a
// terminal state.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/adeyemi/chopbot/internal/model/order"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id                TEXT PRIMARY KEY,
	session_token     TEXT NOT NULL,
	items             JSONB NOT NULL,
	total             INT NOT NULL,
	status            TEXT NOT NULL,
	payment_reference TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS orders_one_pending_per_session
	ON orders (session_token) WHERE status = 'pending';
CREATE UNIQUE INDEX IF NOT EXISTS orders_payment_reference
	ON orders (payment_reference) WHERE payment_reference <> '';
`

// uniqueViolation is the PostgreSQL error code for unique constraint breaches.
const uniqueViolation = "23505"

// Store implements order.Store on top of *sql.DB.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL order store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the orders table and its partial unique indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate orders: %w", err)
	}
	return nil
}

// CreatePending inserts a new pending order. The partial unique index on
// (session_token) WHERE status='pending' enforces the one-pending-per-session
// invariant even across concurrent checkouts.
func (s *Store) CreatePending(ctx context.Context, o order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (id, session_token, items, total, status, payment_reference, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.SessionToken, items, o.Total, order.StatusPending, "", o.CreatedAt, o.UpdatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return order.ErrPendingExists
	}
	return err
}

// FindPending returns the session's pending order.
func (s *Store) FindPending(ctx context.Context, sessionToken string) (order.Order, error) {
	row := s.db.QueryRowContext(ctx,
		selectOrder+` WHERE session_token = $1 AND status = 'pending'`, sessionToken)
	return scanOrder(row)
}

// FindByReference returns the order carrying the payment reference.
func (s *Store) FindByReference(ctx context.Context, reference string) (order.Order, error) {
	if reference == "" {
		return order.Order{}, order.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		selectOrder+` WHERE payment_reference = $1`, reference)
	return scanOrder(row)
}

// SetPaymentReference assigns a reference to an order that does not have one
// yet. The empty-reference guard keeps an assigned reference immutable.
func (s *Store) SetPaymentReference(ctx context.Context, orderID, reference string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET payment_reference = $2, updated_at = $3
		 WHERE id = $1 AND payment_reference = ''`,
		orderID, reference, time.Now().UTC())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return order.ErrReferenceSet
	}
	return order.ErrNotFound
}

// MarkPaid transitions the referenced order from pending to paid. The status
// qualifier in the UPDATE makes duplicate callbacks and racing cancels safe:
// only one caller ever observes transitioned=true.
func (s *Store) MarkPaid(ctx context.Context, reference string) (order.Order, bool, error) {
	if reference == "" {
		return order.Order{}, false, order.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE orders SET status = 'paid', updated_at = $2
		 WHERE payment_reference = $1 AND status = 'pending'
		 RETURNING id, session_token, items, total, status, payment_reference, created_at, updated_at`,
		reference, time.Now().UTC())
	o, err := scanOrder(row)
	if err == nil {
		return o, true, nil
	}
	if !errors.Is(err, order.ErrNotFound) {
		return order.Order{}, false, err
	}
	// Nothing transitioned: either the order is already paid (duplicate
	// callback, a no-op) or no live order matches the reference.
	o, err = s.FindByReference(ctx, reference)
	if err != nil {
		return order.Order{}, false, err
	}
	if o.Status == order.StatusPaid {
		return o, false, nil
	}
	return order.Order{}, false, order.ErrNotFound
}

// DeletePending removes all pending orders for the session.
func (s *Store) DeletePending(ctx context.Context, sessionToken string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM orders WHERE session_token = $1 AND status = 'pending'`, sessionToken)
	return err
}

// DeletePendingByID removes a single order while it is still pending.
func (s *Store) DeletePendingByID(ctx context.Context, orderID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM orders WHERE id = $1 AND status = 'pending'`, orderID)
	return err
}

// ListCompleted returns the session's non-pending orders, newest first.
func (s *Store) ListCompleted(ctx context.Context, sessionToken string) ([]order.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		selectOrder+` WHERE session_token = $1 AND status <> 'pending' ORDER BY created_at DESC`,
		sessionToken)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const selectOrder = `SELECT id, session_token, items, total, status, payment_reference, created_at, updated_at FROM orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (order.Order, error) {
	var o order.Order
	var items []byte
	err := row.Scan(&o.ID, &o.SessionToken, &items, &o.Total, &o.Status, &o.PaymentReference, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return order.Order{}, order.ErrNotFound
	}
	if err != nil {
		return order.Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return order.Order{}, fmt.Errorf("decode items: %w", err)
	}
	return o, nil
}
