package broadcast

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/example/shop-analytics/internal/event"
)

// defaultWriteWait bounds a single viewer write. A viewer that stops
// reading must error out instead of wedging the flush loop.
const defaultWriteWait = 10 * time.Second

// Hub maintains the set of connected dashboard viewers and pushes each
// buffered log line to every open connection. No server-side filtering:
// viewers filter client-side with the documented filter keys.
type Hub struct {
	mu        sync.Mutex
	conns     map[string]*websocket.Conn
	upgrader  websocket.Upgrader
	writeWait time.Duration
}

func NewHub() *Hub {
	return &Hub{
		conns:     make(map[string]*websocket.Conn),
		writeWait: defaultWriteWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboard origins are enforced upstream by the gateway.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades an HTTP request to a websocket viewer connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Broadcast] Upgrade failed: %v", err)
		return
	}

	id := uuid.NewString()
	h.mu.Lock()
	h.conns[id] = conn
	total := len(h.conns)
	h.mu.Unlock()
	log.Printf("[Broadcast] Viewer %s connected (%d total)", id, total)

	// Read pump: viewers never send data we act on, but reading is how
	// we notice the peer going away.
	go func() {
		defer h.remove(id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast pushes every log line in the batch to every connection
// still open. A connection that fails to write is closed and removed.
func (h *Hub) Broadcast(ctx context.Context, batch []event.LogEvent) {
	payloads := make([][]byte, 0, len(batch))
	for _, e := range batch {
		data, err := json.Marshal(e)
		if err != nil {
			log.Printf("[Broadcast] Dropping unencodable log line: %v", err)
			continue
		}
		payloads = append(payloads, data)
	}
	if len(payloads) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conn := range h.conns {
		for _, data := range payloads {
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("[Broadcast] Dropping viewer %s: %v", id, err)
				conn.Close()
				delete(h.conns, id)
				break
			}
		}
	}
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close terminates every viewer connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conn := range h.conns {
		conn.Close()
		delete(h.conns, id)
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, ok := h.conns[id]; ok {
		conn.Close()
		delete(h.conns, id)
	}
}
