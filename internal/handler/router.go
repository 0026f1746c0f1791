package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	paymenthandler "github.com/adeyemi/chopbot/internal/handler/payment"
	"github.com/adeyemi/chopbot/internal/handler/ws"
	"github.com/adeyemi/chopbot/internal/hub"
	middlewarePkg "github.com/adeyemi/chopbot/internal/middleware"
	"github.com/adeyemi/chopbot/internal/model/order"
	"github.com/adeyemi/chopbot/internal/service/conversation"
	"github.com/adeyemi/chopbot/internal/service/reconcile"
	"github.com/adeyemi/chopbot/internal/session"
	"github.com/adeyemi/chopbot/pkg/utils"
)

// Deps carries the application context injected into both the live-connection
// layer and the HTTP layer; routing never reaches for shared globals.
type Deps struct {
	Conversation  *conversation.Service
	Reconciler    *reconcile.Service
	Sessions      *session.Manager
	Orders        order.Store
	Bus           *hub.Hub
	SessionSecret string
	Log           *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	wsHandler := ws.New(deps.Conversation, deps.Sessions, deps.Bus, deps.SessionSecret, deps.Log)
	paymentHandler := paymenthandler.New(deps.Reconciler, deps.Orders, deps.Log)

	wsHandler.RegisterRoutes(r)
	paymentHandler.RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
