// Package notify supplies outbox.Sink implementations: a logging sink for
// local/dev visibility and a websocket hub that fans claimed outbox rows out
// to subscribed clients in real time.
//
// The hub is grounded on Klingon-tech-klingdex's internal/rpc/websocket.go
// WSHub (register/unregister/broadcast channels, per-client send buffer,
// messages dropped when a client's buffer is full) adapted from its
// peer-event model to order-lifecycle events.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oxzoid/settlementcore/internal/logging"
	"github.com/oxzoid/settlementcore/internal/outbox"
)

// LogSink delivers by logging the envelope. Always succeeds; useful as the
// sole sink in local/dev deployments and as a fallback appended after a
// hub so delivery failures in the hub never block the outbox.
type LogSink struct {
	log *logging.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{log: logging.Default().Component("notify")}
}

func (s *LogSink) Deliver(ctx context.Context, env outbox.Envelope) error {
	s.log.Info("order event", "order_id", env.OrderID, "event_type", env.EventType)
	return nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsEvent is the JSON frame pushed to subscribed clients.
type wsEvent struct {
	EventType string          `json:"event_type"`
	OrderID   string          `json:"order_id"`
	Payload   json.RawMessage `json:"payload"`
	SentAt    int64           `json:"sent_at"`
}

// client is one connected websocket subscriber.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans every outbox envelope out to every connected client; there is no
// per-order subscription, so each client receives events for all orders.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan *wsEvent
	register   chan *client
	unregister chan *client
	log        *logging.Logger
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan *wsEvent, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		log:        logging.Default().Component("notify.hub"),
	}
}

// Run drives the hub's event loop until ctx is cancelled. Must be started
// once, in its own goroutine, before ServeHTTP is wired into a router.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.log.Error("failed to marshal event", "err", err)
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					h.log.Warn("client send buffer full, dropping", "order_id", event.OrderID)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Deliver implements outbox.Sink: it never fails — a dashboard with zero
// connected clients is not a delivery failure, so the outbox row is always
// marked sent after this call.
func (h *Hub) Deliver(ctx context.Context, env outbox.Envelope) error {
	select {
	case h.broadcast <- &wsEvent{EventType: env.EventType, OrderID: env.OrderID, Payload: env.Payload, SentAt: time.Now().Unix()}:
	default:
		h.log.Warn("broadcast channel full, dropping event", "order_id", env.OrderID)
	}
	return nil
}

// ServeHTTP upgrades the connection and pumps it until the client
// disconnects; stopping the hub's Run loop does not close open connections.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 64)}
	h.register <- c
	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Multi fans a single Deliver call out to every sink in order, returning
// the first error but still attempting the rest — used to run Hub and
// LogSink side by side.
type Multi struct {
	Sinks []outbox.Sink
}

func (m Multi) Deliver(ctx context.Context, env outbox.Envelope) error {
	var firstErr error
	for _, s := range m.Sinks {
		if err := s.Deliver(ctx, env); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
