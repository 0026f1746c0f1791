// Package hub is the live-connection registry. It is constructed in main and
// injected into both the WebSocket layer and the payment callback layer, so
// neither depends on shared globals.
package hub

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Outbound event types pushed to live connections.
const (
	TypeBotMessage   = "bot-message"
	TypeRedirect     = "redirect"
	TypeClearSession = "clear-session"
)

// Message is an outbound envelope delivered over a live connection.
type Message struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewMessage stamps an envelope of the given type.
func NewMessage(msgType string, data any) Message {
	return Message{Type: msgType, Data: data, Timestamp: time.Now().UnixMilli()}
}

// Sink is one live connection's receiving end. Deliver is best-effort and
// must not block; Clear tells the connection to reset the session it is
// bound to.
type Sink interface {
	Deliver(msg Message)
	Clear(token string)
}

type entry struct {
	token string
	sink  Sink
}

// Hub tracks live connections and which session token each is bound to.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]entry
	log     *zap.Logger
}

// New creates an empty hub.
func New(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]entry),
		log:     log.Named("hub"),
	}
}

// Register binds a connection to a session token.
func (h *Hub) Register(connID, token string, sink Sink) {
	h.mu.Lock()
	h.clients[connID] = entry{token: token, sink: sink}
	h.mu.Unlock()
	h.log.Debug("connection registered", zap.String("conn", connID), zap.String("token", token))
}

// Rebind updates the session token a connection is bound to, after the
// connection regenerated its session.
func (h *Hub) Rebind(connID, token string) {
	h.mu.Lock()
	if e, ok := h.clients[connID]; ok {
		e.token = token
		h.clients[connID] = e
	}
	h.mu.Unlock()
}

// Unregister removes a connection.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	delete(h.clients, connID)
	h.mu.Unlock()
}

// Send delivers a message to one connection, best-effort. An unknown
// connection id is ignored.
func (h *Hub) Send(connID string, msg Message) {
	h.mu.RLock()
	e, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	e.sink.Deliver(msg)
}

// BroadcastClear signals every connection bound to the token to reset its
// session. Delivery failures never propagate to the caller.
func (h *Hub) BroadcastClear(token string) {
	h.mu.RLock()
	var sinks []Sink
	for _, e := range h.clients {
		if e.token == token {
			sinks = append(sinks, e.sink)
		}
	}
	h.mu.RUnlock()

	h.log.Info("broadcast clear", zap.String("token", token), zap.Int("connections", len(sinks)))
	for _, s := range sinks {
		s.Clear(token)
	}
}
