package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"fanzone/internal/domain"
	"fanzone/internal/services"
	"fanzone/pkg/logger"
	"fanzone/pkg/utils"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// foreignUserFields name users other than the sender and are dropped from
// client broadcasts.
var foreignUserFields = []string{"previous_bidder_id", "winner_id"}

// ClientMessage is what browsers send over the socket.
type ClientMessage struct {
	Type  string           `json:"type"`
	Event domain.EventType `json:"event,omitempty"`
	Data  json.RawMessage  `json:"data,omitempty"`
}

type UnreadCountMessage struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PollerFactory builds the unread poller of one connection. onChange pushes
// the new count to that connection.
type PollerFactory func(onChange func(count int)) *services.UnreadPoller

type RateLimit struct {
	PerSecond float64
	Burst     int
}

type WebSocketHandler struct {
	sessions    domain.SessionStore
	broadcaster domain.Broadcaster
	connManager domain.ConnectionManager
	newPoller   PollerFactory
	limit       RateLimit
	upgrader    websocket.Upgrader
	log         logger.Logger
}

func NewWebSocketHandler(sessions domain.SessionStore, broadcaster domain.Broadcaster,
	connManager domain.ConnectionManager, newPoller PollerFactory, limit RateLimit, log logger.Logger) *WebSocketHandler {
	if limit.PerSecond <= 0 {
		limit.PerSecond = 5
	}
	if limit.Burst <= 0 {
		limit.Burst = 10
	}
	return &WebSocketHandler{
		sessions:    sessions,
		broadcaster: broadcaster,
		connManager: connManager,
		newPoller:   newPoller,
		limit:       limit,
		log:         log,
	}
}

// WithAllowedOrigins restricts browser handshakes to the given origins. A
// request without an Origin header is not a browser and is let through.
// Without a list the upgrader only accepts same-origin handshakes.
func (h *WebSocketHandler) WithAllowedOrigins(origins []string) *WebSocketHandler {
	if len(origins) == 0 {
		h.upgrader.CheckOrigin = nil
		return h
	}
	allowed := utils.NewOriginAllowList(origins)
	h.upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed.Allows(origin)
	}
	return h
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)
	if token == "" {
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}

	userID, err := h.sessions.ResolveSession(r.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			http.Error(w, "invalid session", http.StatusUnauthorized)
			return
		}
		h.log.Error("Failed to resolve session", "error", err)
		http.Error(w, "session lookup failed", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConnection(conn, userID, h.log)

	if err := h.connManager.RegisterConnection(wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		_ = wsConn.Close()
		return
	}

	poller := h.newPoller(func(count int) {
		if err := wsConn.Send(UnreadCountMessage{Type: "unread_count", Count: count}); err != nil {
			h.log.Debug("Failed to push unread count", "user_id", userID, "error", err)
		}
	})

	go h.handleMessages(wsConn, poller, token)
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection, poller *services.UnreadPoller, token string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		poller.Stop()
		_ = h.connManager.UnregisterConnection(conn)
		_ = conn.Close()
	}()

	if err := poller.Start(ctx, token); err != nil {
		h.log.Error("Failed to start unread poller", "user_id", conn.UserID(), "error", err)
	}

	limiter := rate.NewLimiter(rate.Limit(h.limit.PerSecond), h.limit.Burst)

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Connection closed unexpectedly", "user_id", conn.UserID(), "error", err)
			}
			return
		}

		switch msg.Type {
		case "ping":
			_ = conn.Send(map[string]string{"type": "pong"})
		case "notifications_panel_closed":
			poller.Refresh()
		case "broadcast":
			h.handleBroadcast(ctx, conn, limiter, msg)
		default:
			h.log.Debug("Ignoring unknown message", "type", msg.Type)
		}
	}
}

func (h *WebSocketHandler) handleBroadcast(ctx context.Context, conn *WebSocketConnection, limiter *rate.Limiter, msg ClientMessage) {
	if !limiter.Allow() {
		_ = conn.Send(ErrorMessage{Type: "error", Message: "rate limited"})
		return
	}
	if msg.Event == "" {
		_ = conn.Send(ErrorMessage{Type: "error", Message: "event required"})
		return
	}

	if !msg.Event.ClientPublishable() {
		_ = conn.Send(ErrorMessage{Type: "error", Message: "event not allowed"})
		return
	}

	data, err := attributeToSender(msg.Data, conn.UserID())
	if err != nil {
		_ = conn.Send(ErrorMessage{Type: "error", Message: "invalid payload"})
		return
	}

	if err := h.broadcaster.Broadcast(ctx, msg.Event, data); err != nil {
		h.log.Error("Failed to broadcast client event", "event_type", msg.Event, "error", err)
		_ = conn.Send(ErrorMessage{Type: "error", Message: "invalid payload"})
	}
}

// attributeToSender stamps an object payload with the sender's user id and
// drops fields naming other users. Non-object payloads carry no user.
func attributeToSender(data json.RawMessage, userID string) (json.RawMessage, error) {
	if len(data) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(data) {
		return nil, errors.New("payload is not valid JSON")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return data, nil
	}
	id, err := json.Marshal(userID)
	if err != nil {
		return nil, err
	}
	fields["user_id"] = id
	for _, name := range foreignUserFields {
		delete(fields, name)
	}
	return json.Marshal(fields)
}

func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
