package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"RiskWatch/internal/domain/models"
	domrepo "RiskWatch/internal/domain/repository"
	applogger "RiskWatch/pkg/logger"
)

const writeWait = 5 * time.Second

// Hub is the in-app sink: it broadcasts every notification to connected dashboard clients.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	l        *applogger.Logger
}

var _ domrepo.NotificationSink = (*Hub)(nil)

func NewHub(l *applogger.Logger) *Hub {
	return &Hub{
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		l:        l,
	}
}

func (h *Hub) Name() string   { return "websocket" }
func (h *Hub) External() bool { return false }

// Send writes n to every client. Clients whose write fails are dropped; that is not a delivery failure.
func (h *Hub) Send(_ context.Context, n models.Notification) error {
	msg, err := json.Marshal(envelope{Type: "notification", Data: n})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.l.Debug("websocket write failed, dropping client", applogger.Error(err))
			_ = c.Close()
			delete(h.clients, c)
		}
	}
	return nil
}

type envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Serve upgrades the request and keeps the connection registered until the client goes away.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.l.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), time.Now().Add(time.Second))
		_ = c.Close()
		delete(h.clients, c)
	}
}
