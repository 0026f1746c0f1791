package order

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore provides an in-memory implementation of Store. All transitions
// run under one lock, which gives the same conditional-update semantics the
// SQL store gets from status-qualified UPDATEs.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]Order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]Order)}
}

// CreatePending inserts a new pending order.
func (s *MemoryStore) CreatePending(_ context.Context, o Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.orders {
		if existing.SessionToken == o.SessionToken && existing.Status == StatusPending {
			return ErrPendingExists
		}
	}
	o.Status = StatusPending
	s.orders[o.ID] = o
	return nil
}

// FindPending returns the session's pending order, if any.
func (s *MemoryStore) FindPending(_ context.Context, sessionToken string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.SessionToken == sessionToken && o.Status == StatusPending {
			return o, nil
		}
	}
	return Order{}, ErrNotFound
}

// FindByReference returns the order carrying the payment reference.
func (s *MemoryStore) FindByReference(_ context.Context, reference string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if reference == "" {
		return Order{}, ErrNotFound
	}
	for _, o := range s.orders {
		if o.PaymentReference == reference {
			return o, nil
		}
	}
	return Order{}, ErrNotFound
}

// SetPaymentReference assigns a reference to a pending order.
func (s *MemoryStore) SetPaymentReference(_ context.Context, orderID, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if o.PaymentReference != "" {
		return ErrReferenceSet
	}
	o.PaymentReference = reference
	o.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = o
	return nil
}

// MarkPaid transitions the referenced order from pending to paid.
func (s *MemoryStore) MarkPaid(_ context.Context, reference string) (Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range s.orders {
		if o.PaymentReference != reference || reference == "" {
			continue
		}
		switch o.Status {
		case StatusPending:
			o.Status = StatusPaid
			o.UpdatedAt = time.Now().UTC()
			s.orders[id] = o
			return o, true, nil
		case StatusPaid:
			return o, false, nil
		default:
			// A cancelled order cannot be revived.
			return Order{}, false, ErrNotFound
		}
	}
	return Order{}, false, ErrNotFound
}

// DeletePending removes all pending orders for the session.
func (s *MemoryStore) DeletePending(_ context.Context, sessionToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range s.orders {
		if o.SessionToken == sessionToken && o.Status == StatusPending {
			delete(s.orders, id)
		}
	}
	return nil
}

// DeletePendingByID removes a single order while it is still pending.
func (s *MemoryStore) DeletePendingByID(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[orderID]; ok && o.Status == StatusPending {
		delete(s.orders, orderID)
	}
	return nil
}

// ListCompleted returns the session's non-pending orders, newest first.
func (s *MemoryStore) ListCompleted(_ context.Context, sessionToken string) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Order
	for _, o := range s.orders {
		if o.SessionToken == sessionToken && o.Status != StatusPending {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
