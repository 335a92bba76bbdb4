package events

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Hub tracks websocket subscribers keyed by family and fans events out
// to them. Slow clients are dropped rather than allowed to stall the
// broadcast.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*Client]bool
	logger  *zap.Logger
}

// NewHub constructs an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]map[*Client]bool),
		logger:  logger,
	}
}

// Run consumes the bus subscription until the context is cancelled or
// the channel closes.
func (h *Hub) Run(ctx context.Context, sub <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			h.Broadcast(event)
		}
	}
}

// Register adds a client to its family's subscriber set.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.familyID]; !ok {
		h.clients[client.familyID] = make(map[*Client]bool)
	}
	h.clients[client.familyID][client] = true
}

// Unregister removes a client and closes its send channel. Safe to call
// more than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

// Broadcast delivers the event to every client of its family, or to all
// clients when the event carries no family.
func (h *Hub) Broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if event.FamilyID != "" {
		h.broadcastLocked(h.clients[event.FamilyID], event)
		return
	}
	for _, family := range h.clients {
		h.broadcastLocked(family, event)
	}
}

func (h *Hub) broadcastLocked(clients map[*Client]bool, event Event) {
	for client := range clients {
		select {
		case client.send <- event:
		default:
			h.logger.Warn("websocket client lagging, dropping connection",
				zap.String("family_id", client.familyID))
			h.removeLocked(client)
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	family, ok := h.clients[client.familyID]
	if !ok {
		return
	}
	if _, ok := family[client]; !ok {
		return
	}
	delete(family, client)
	close(client.send)
	if len(family) == 0 {
		delete(h.clients, client.familyID)
	}
}

// Client is one websocket subscriber. Callers upgrade the connection,
// construct the client, register it and start both pumps.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	familyID string
	send     chan Event
}

// NewClient wraps an upgraded connection for the given family.
func NewClient(hub *Hub, conn *websocket.Conn, familyID string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		familyID: familyID,
		send:     make(chan Event, 32),
	}
}

// ReadPump drains inbound frames to keep the connection's read deadline
// fresh. The stream is one-way; client payloads are discarded.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
	}
}

// WritePump sends queued events and periodic pings until the client is
// unregistered or the write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")) //nolint:errcheck
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
