package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Auth happens upstream; the hub accepts any origin the router lets through.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// conn is one websocket connection with a write lock, since gorilla permits
// only one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// Hub tracks live websocket connections per recipient and implements Emitter
// over them. A recipient may hold several connections (multiple tabs or
// devices); Emit succeeds if at least one write lands.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string][]*conn
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		conns:  make(map[string][]*conn),
		logger: logger,
	}
}

// HandleWS upgrades an HTTP request to a websocket connection and registers
// it under the user id from the query string. The connection is held open
// until the client disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &conn{ws: ws}
	h.register(userID, c)
	h.logger.Info("websocket client connected", slog.String("user_id", userID))

	// Drain reads until the client goes away; payloads from clients are
	// ignored, the hub is push-only.
	go func() {
		defer func() {
			h.unregister(userID, c)
			_ = ws.Close()
			h.logger.Info("websocket client disconnected", slog.String("user_id", userID))
		}()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) register(userID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[userID] = append(h.conns[userID], c)
}

func (h *Hub) unregister(userID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.conns[userID]
	for i, existing := range conns {
		if existing == c {
			h.conns[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
}

// ConnectionCount returns how many connections a recipient currently holds.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Emit writes the payload as JSON to every connection of the recipient. It
// fails when the recipient has no connection or every write errors.
func (h *Hub) Emit(_ context.Context, recipientID string, payload any) error {
	h.mu.RLock()
	conns := make([]*conn, len(h.conns[recipientID]))
	copy(conns, h.conns[recipientID])
	h.mu.RUnlock()

	if len(conns) == 0 {
		return fmt.Errorf("websocket emit: no active connection for recipient %s", recipientID)
	}

	// Marshal once up front so a bad payload fails before any write.
	if _, err := json.Marshal(payload); err != nil {
		return fmt.Errorf("websocket emit: marshal payload: %w", err)
	}

	var lastErr error
	delivered := 0
	for _, c := range conns {
		if err := c.writeJSON(payload); err != nil {
			lastErr = err
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return fmt.Errorf("websocket emit: all %d writes failed for recipient %s: %w", len(conns), recipientID, lastErr)
	}
	return nil
}
