// Package payment exposes the HTTP boundary the payment provider calls back
// into, plus the read-only receipt lookup.
package payment

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/adeyemi/chopbot/internal/model/order"
	"github.com/adeyemi/chopbot/internal/service/reconcile"
	"github.com/adeyemi/chopbot/pkg/utils"
)

// Handler serves the provider callback and the receipt endpoint.
type Handler struct {
	reconciler *reconcile.Service
	orders     order.Store
	log        *zap.Logger
}

// New creates the payment HTTP handler.
func New(reconciler *reconcile.Service, orders order.Store, log *zap.Logger) *Handler {
	return &Handler{reconciler: reconciler, orders: orders, log: log.Named("payment")}
}

// RegisterRoutes mounts the callback and receipt routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/payment/callback", h.handleCallback)
	r.Get("/receipt", h.handleReceipt)
}

// handleCallback reconciles the provider redirect. Whatever happens here the
// user lands on a page: the receipt when the charge is confirmed, an error
// banner otherwise.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")

	if _, err := h.reconciler.Reconcile(r.Context(), reference); err != nil {
		if !errors.Is(err, reconcile.ErrVerificationFailed) && !errors.Is(err, order.ErrNotFound) {
			h.log.Error("reconcile callback", zap.String("reference", reference), zap.Error(err))
		}
		http.Redirect(w, r, "/?payment=error", http.StatusFound)
		return
	}

	http.Redirect(w, r, "/receipt?reference="+reference, http.StatusFound)
}

// handleReceipt returns the paid order matching the reference.
func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		utils.RespondError(w, http.StatusBadRequest, "reference is required")
		return
	}

	o, err := h.orders.FindByReference(r.Context(), reference)
	if err != nil && !errors.Is(err, order.ErrNotFound) {
		h.log.Error("load receipt", zap.String("reference", reference), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "could not load receipt")
		return
	}
	if err != nil || o.Status != order.StatusPaid {
		utils.RespondError(w, http.StatusNotFound, "receipt not found")
		return
	}

	utils.RespondJSON(w, http.StatusOK, o)
}
