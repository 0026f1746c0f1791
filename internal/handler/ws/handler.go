// Package ws is the live-connection layer: one WebSocket per user, carrying
// the numeric ordering conversation. Each connection binds to a session via a
// signed cookie and serializes its turns, while the hub lets the payment
// reconciliation path reach connections it never met.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/adeyemi/chopbot/internal/hub"
	sessmodel "github.com/adeyemi/chopbot/internal/model/session"
	"github.com/adeyemi/chopbot/internal/service/conversation"
	"github.com/adeyemi/chopbot/internal/session"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Inbound event types.
const (
	typeUserMessage  = "user-message"
	typeClearSession = "clear-session"
)

// Handler upgrades connections and runs their conversation loops.
type Handler struct {
	convo         *conversation.Service
	sessions      *session.Manager
	bus           *hub.Hub
	sessionSecret string
	log           *zap.Logger
	upgrader      websocket.Upgrader
}

// New creates the WebSocket handler.
func New(convo *conversation.Service, sessions *session.Manager, bus *hub.Hub, sessionSecret string, log *zap.Logger) *Handler {
	return &Handler{
		convo:         convo,
		sessions:      sessions,
		bus:           bus,
		sessionSecret: sessionSecret,
		log:           log.Named("ws"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleConnection)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// client is one live connection. It implements hub.Sink for deliveries from
// the reconciliation path and conversation.Notifier for the turn in progress.
type client struct {
	id   string
	conn *websocket.Conn
	h    *Handler

	// writeMu serializes frames; gorilla connections allow one writer.
	writeMu sync.Mutex

	// turnMu makes a user turn and a clear-session reset mutually
	// exclusive, so a reset never interleaves with a half-finished turn.
	turnMu sync.Mutex
	sess   sessmodel.Session
}

func (h *Handler) handleConnection(w http.ResponseWriter, r *http.Request) {
	token := h.tokenFromCookie(r)
	sess, err := h.sessions.GetOrCreate(r.Context(), token)
	if err != nil {
		h.log.Error("establish session", zap.Error(err))
		http.Error(w, "could not establish session", http.StatusInternalServerError)
		return
	}

	header := http.Header{}
	header.Add("Set-Cookie", sessionCookie(sess.Token, h.sessionSecret).String())

	conn, err := h.upgrader.Upgrade(w, r, header)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		h:    h,
		sess: sess,
	}
	h.bus.Register(c.id, sess.Token, c)
	defer h.bus.Unregister(c.id)

	h.log.Info("connection opened",
		zap.String("conn", c.id), zap.String("token", sess.Token))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})
	go c.pingLoop(ctx)

	h.convo.Greet(c)
	c.readLoop(ctx)
}

func (h *Handler) tokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	token, ok := verifyCookie(cookie.Value, h.sessionSecret)
	if !ok {
		return ""
	}
	return token
}

// readLoop processes inbound events one at a time: a turn runs to completion
// before the next input from this connection is read.
func (c *client) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg inboundMessage
			if err := c.conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.h.log.Warn("read error", zap.String("conn", c.id), zap.Error(err))
				}
				return
			}
			c.conn.SetReadDeadline(time.Now().Add(readTimeout))
			c.handleMessage(ctx, &msg)
		}
	}
}

func (c *client) handleMessage(ctx context.Context, msg *inboundMessage) {
	switch msg.Type {
	case typeUserMessage:
		var body string
		if err := json.Unmarshal(msg.Data, &body); err != nil {
			c.Deliver(hub.NewMessage(hub.TypeBotMessage, "I can only read plain text messages."))
			return
		}
		c.turnMu.Lock()
		c.sess = c.h.convo.HandleInput(ctx, c.sess, body, c)
		c.turnMu.Unlock()
	case typeClearSession:
		var token string
		if err := json.Unmarshal(msg.Data, &token); err != nil {
			return
		}
		c.Clear(token)
	default:
		c.Deliver(hub.NewMessage(hub.TypeBotMessage, "Unsupported message type: "+msg.Type))
	}
}

// BotMessage implements conversation.Notifier.
func (c *client) BotMessage(text string) {
	c.Deliver(hub.NewMessage(hub.TypeBotMessage, text))
}

// Redirect implements conversation.Notifier.
func (c *client) Redirect(url string) {
	c.Deliver(hub.NewMessage(hub.TypeRedirect, url))
}

// Deliver implements hub.Sink. Write failures are logged and dropped; the
// mutation that produced the message stands regardless.
func (c *client) Deliver(msg hub.Message) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		c.h.log.Warn("deliver failed", zap.String("conn", c.id), zap.Error(err))
	}
}

// Clear implements hub.Sink: the session was settled elsewhere (payment
// confirmed), so regenerate the conversational state and start over. Ignored
// when the token does not match the session this connection is bound to.
func (c *client) Clear(token string) {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()

	if token != c.sess.Token {
		return
	}

	fresh, err := c.h.sessions.Regenerate(context.Background(), c.sess)
	if err != nil {
		c.h.log.Error("regenerate session", zap.String("conn", c.id), zap.Error(err))
		return
	}
	c.sess = fresh
	c.h.bus.Rebind(c.id, fresh.Token)

	c.Deliver(hub.NewMessage(hub.TypeClearSession, token))
	c.h.convo.Greet(c)
}

func (c *client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
