// Package conversation implements the numeric command state machine that
// drives an ordering session: browsing the menu, building a cart, checkout
// against the payment gateway, and order review/history/cancel.
package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adeyemi/chopbot/internal/model/menu"
	"github.com/adeyemi/chopbot/internal/model/order"
	sessmodel "github.com/adeyemi/chopbot/internal/model/session"
	"github.com/adeyemi/chopbot/internal/service/payment"
	"github.com/adeyemi/chopbot/internal/session"
)

// Reserved command inputs.
const (
	cmdBrowse   = "1"
	cmdCheckout = "99"
	cmdHistory  = "98"
	cmdReview   = "97"
	cmdCancel   = "0"
)

// minimumTotal is the smallest order total the gateway will accept.
const minimumTotal = 100

// Notifier is the turn's channel back to the originating live connection.
type Notifier interface {
	BotMessage(text string)
	Redirect(url string)
}

// Service routes validated user input to command handlers. It owns no
// per-connection state; everything a turn needs travels in the turn value.
type Service struct {
	catalog        menu.Catalog
	orders         order.Store
	sessions       *session.Manager
	gateway        payment.Client
	callbackURL    string
	gatewayTimeout time.Duration
	log            *zap.Logger
}

// New creates the conversation service. callbackURL is the absolute address
// the payment provider redirects to after a charge.
func New(catalog menu.Catalog, orders order.Store, sessions *session.Manager, gateway payment.Client, callbackURL string, log *zap.Logger) *Service {
	return &Service{
		catalog:        catalog,
		orders:         orders,
		sessions:       sessions,
		gateway:        gateway,
		callbackURL:    callbackURL,
		gatewayTimeout: 10 * time.Second,
		log:            log.Named("conversation"),
	}
}

// turn bundles the state one user turn operates on, so command handlers hold
// explicit references instead of closing over a connection.
type turn struct {
	svc    *Service
	sess   sessmodel.Session
	notify Notifier
}

// Greet sends the opening options menu for a fresh or reset session.
func (s *Service) Greet(n Notifier) {
	n.BotMessage(welcomeText + "\n\n" + optionsText)
}

// HandleInput processes a single user turn and returns the session as it
// stands after the turn. Input that does not match the command grammar is
// rejected without touching any state.
func (s *Service) HandleInput(ctx context.Context, sess sessmodel.Session, input string, n Notifier) sessmodel.Session {
	t := &turn{svc: s, sess: sess, notify: n}

	input = strings.TrimSpace(input)
	if !inputPattern.MatchString(input) {
		n.BotMessage(invalidInputText)
		n.BotMessage(optionsText)
		return t.sess
	}

	switch input {
	case cmdBrowse:
		t.browse(ctx)
	case cmdCheckout:
		t.checkout(ctx)
	case cmdHistory:
		t.history(ctx)
	case cmdReview:
		t.review(ctx)
	case cmdCancel:
		t.cancel(ctx)
	default:
		t.selectItems(ctx, input)
	}
	return t.sess
}

// browse lists the menu and arms the selection stage. The options menu is
// deliberately not re-sent: the next input is expected to be a selection.
func (t *turn) browse(ctx context.Context) {
	items := t.svc.catalog.List()

	t.sess.Cart = nil
	t.sess.Stage = sessmodel.StageSelecting
	if err := t.svc.sessions.Update(ctx, t.sess); err != nil {
		t.svc.log.Error("persist browse state", zap.Error(err))
		t.notify.BotMessage(retryLaterText)
		return
	}

	t.notify.BotMessage(renderMenu(items))
}

// selectItems handles the default branch: a comma-separated selection. It is
// only meaningful while the session is in the selecting stage; otherwise the
// input is ignored and the options menu is re-sent.
func (t *turn) selectItems(ctx context.Context, input string) {
	if t.sess.Stage != sessmodel.StageSelecting {
		t.notify.BotMessage(optionsText)
		return
	}

	items := t.svc.catalog.List()
	var picked []menu.Item
	var cart []string
	for _, field := range strings.Split(input, ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || idx < 1 || idx > len(items) {
			continue
		}
		item := items[idx-1]
		picked = append(picked, item)
		cart = append(cart, item.ID)
	}

	if len(picked) == 0 {
		t.notify.BotMessage(invalidSelectionText)
		t.notify.BotMessage(optionsText)
		return
	}

	t.sess.Cart = cart
	t.sess.Stage = sessmodel.StageIdle
	if err := t.svc.sessions.Update(ctx, t.sess); err != nil {
		t.svc.log.Error("persist selection", zap.Error(err))
		t.notify.BotMessage(retryLaterText)
		return
	}

	total := 0
	for _, item := range picked {
		total += item.Price
	}
	t.notify.BotMessage(renderSelection(len(picked), total))
	t.notify.BotMessage(optionsText)
}

// review shows the cart when one is in progress, otherwise any order still
// awaiting payment.
func (t *turn) review(ctx context.Context) {
	if len(t.sess.Cart) > 0 {
		lines, total := t.cartContents()
		t.notify.BotMessage(renderCart(lines, total))
		t.notify.BotMessage(optionsText)
		return
	}

	pending, err := t.svc.orders.FindPending(ctx, t.sess.Token)
	switch {
	case err == nil:
		t.notify.BotMessage(renderOrder(pending))
	case errors.Is(err, order.ErrNotFound):
		t.notify.BotMessage(noCurrentOrderText)
	default:
		t.svc.log.Error("find pending order", zap.Error(err))
		t.notify.BotMessage(retryLaterText)
	}
	t.notify.BotMessage(optionsText)
}

// history lists completed orders, newest first.
func (t *turn) history(ctx context.Context) {
	orders, err := t.svc.orders.ListCompleted(ctx, t.sess.Token)
	if err != nil {
		t.svc.log.Error("list order history", zap.Error(err))
		t.notify.BotMessage(retryLaterText)
		t.notify.BotMessage(optionsText)
		return
	}

	t.notify.BotMessage(renderHistory(orders))
	t.notify.BotMessage(optionsText)
}

// cancel deletes every pending order for the session and empties the cart.
// Safe to repeat: cancelling with nothing pending is not an error.
func (t *turn) cancel(ctx context.Context) {
	if err := t.svc.orders.DeletePending(ctx, t.sess.Token); err != nil {
		t.svc.log.Error("delete pending orders", zap.Error(err))
		t.notify.BotMessage(retryLaterText)
		t.notify.BotMessage(optionsText)
		return
	}

	t.sess.Cart = nil
	t.sess.Stage = sessmodel.StageIdle
	if err := t.svc.sessions.Update(ctx, t.sess); err != nil {
		t.svc.log.Error("persist cancel", zap.Error(err))
		t.notify.BotMessage(retryLaterText)
		return
	}

	t.notify.BotMessage(cancelledText)
	t.notify.BotMessage(optionsText)
}

// checkout resolves the active order (cart first, then an existing pending
// order), initializes a gateway charge, and pushes the authorization
// redirect. A gateway failure after order creation is compensated by deleting
// the just-created pending order; the compensation is a no-op when nothing
// was created this turn.
func (t *turn) checkout(ctx context.Context) {
	var active order.Order
	var created bool

	if len(t.sess.Cart) > 0 {
		items, ok := t.snapshotCart(ctx)
		if !ok {
			return
		}

		total := 0
		for _, li := range items {
			total += li.Price * li.Quantity
		}
		if total < minimumTotal {
			t.notify.BotMessage(belowMinimumText)
			t.notify.BotMessage(optionsText)
			return
		}

		now := time.Now().UTC()
		active = order.Order{
			ID:           uuid.NewString(),
			SessionToken: t.sess.Token,
			Items:        items,
			Total:        total,
			Status:       order.StatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := t.svc.orders.CreatePending(ctx, active); err != nil {
			if errors.Is(err, order.ErrPendingExists) {
				t.notify.BotMessage(pendingExistsText)
			} else {
				t.svc.log.Error("create order", zap.Error(err))
				t.notify.BotMessage(retryLaterText)
			}
			t.notify.BotMessage(optionsText)
			return
		}
		created = true

		t.sess.Cart = nil
		t.sess.Stage = sessmodel.StageIdle
		if err := t.svc.sessions.Update(ctx, t.sess); err != nil {
			// The order exists; the stale cart only risks a duplicate
			// checkout attempt, which CreatePending rejects.
			t.svc.log.Warn("clear cart after checkout", zap.Error(err))
		}
	} else {
		pending, err := t.svc.orders.FindPending(ctx, t.sess.Token)
		if errors.Is(err, order.ErrNotFound) {
			t.notify.BotMessage(nothingToPlaceText)
			t.notify.BotMessage(optionsText)
			return
		}
		if err != nil {
			t.svc.log.Error("find pending order", zap.Error(err))
			t.notify.BotMessage(retryLaterText)
			t.notify.BotMessage(optionsText)
			return
		}
		active = pending
	}

	t.initiatePayment(ctx, active, created)
}

// snapshotCart re-validates every cart item against the catalog and returns
// the order line items, aggregating repeated selections into quantities. Any
// vanished item aborts the checkout and clears the cart.
func (t *turn) snapshotCart(ctx context.Context) ([]order.LineItem, bool) {
	var items []order.LineItem
	index := make(map[string]int)
	for _, id := range t.sess.Cart {
		item, ok := t.svc.catalog.FindByID(id)
		if !ok {
			t.sess.Cart = nil
			t.sess.Stage = sessmodel.StageIdle
			if err := t.svc.sessions.Update(ctx, t.sess); err != nil {
				t.svc.log.Error("clear stale cart", zap.Error(err))
			}
			t.notify.BotMessage(itemVanishedText)
			t.notify.BotMessage(optionsText)
			return nil, false
		}
		if at, seen := index[id]; seen {
			items[at].Quantity++
			continue
		}
		index[id] = len(items)
		items = append(items, order.LineItem{
			MenuItemID: item.ID,
			Name:       item.Name,
			Price:      item.Price,
			Quantity:   1,
		})
	}
	return items, true
}

// initiatePayment charges the active order through the gateway. Amounts are
// sent in minor currency units.
func (t *turn) initiatePayment(ctx context.Context, active order.Order, created bool) {
	reference := paymentReference(active)

	gwCtx, cancel := context.WithTimeout(ctx, t.svc.gatewayTimeout)
	defer cancel()

	authURL, err := t.svc.gateway.Initialize(gwCtx, active.Total*100, reference, t.svc.callbackURL)
	if err == nil {
		err = t.persistReference(ctx, active, reference)
	}
	if err != nil {
		t.svc.log.Error("initialize payment",
			zap.String("order", active.ID), zap.Error(err))

		var gwErr *payment.GatewayError
		if errors.As(err, &gwErr) && gwErr.Message != "" {
			t.notify.BotMessage(paymentUnavailableText + " (" + gwErr.Message + ")")
		} else {
			t.notify.BotMessage(paymentUnavailableText)
		}
		t.notify.BotMessage(optionsText)

		// Compensate only for the order created this turn; an order
		// resolved from a previous checkout stays pending for retry.
		if created {
			if derr := t.svc.orders.DeletePendingByID(ctx, active.ID); derr != nil {
				t.svc.log.Warn("compensating order delete", zap.String("order", active.ID), zap.Error(derr))
			}
		}
		return
	}

	t.notify.BotMessage(redirectingText)
	t.notify.Redirect(authURL)
}

func (t *turn) persistReference(ctx context.Context, active order.Order, reference string) error {
	if active.PaymentReference != "" {
		return nil
	}
	err := t.svc.orders.SetPaymentReference(ctx, active.ID, reference)
	// The reference is derived from the order id, so a previously assigned
	// reference is necessarily the same value.
	if errors.Is(err, order.ErrReferenceSet) {
		return nil
	}
	return err
}

// paymentReference derives the provider reference deterministically from the
// order id, so retried checkouts of the same order reuse one reference.
func paymentReference(o order.Order) string {
	if o.PaymentReference != "" {
		return o.PaymentReference
	}
	return "chop-" + o.ID
}

// cartContents prices the current cart against the catalog for review.
// Vanished items are priced as unavailable rather than failing the review.
func (t *turn) cartContents() ([]cartLine, int) {
	var lines []cartLine
	total := 0
	for _, id := range t.sess.Cart {
		item, ok := t.svc.catalog.FindByID(id)
		if !ok {
			lines = append(lines, cartLine{name: id + " (unavailable)"})
			continue
		}
		lines = append(lines, cartLine{name: item.Name, price: item.Price})
		total += item.Price
	}
	return lines, total
}
