package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/usecase"
)

// Hub tracks live connections by connection id and implements the
// coordinator's Broadcaster. Writes go through each client's buffered send
// channel, so no room lock is ever held across socket I/O.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger.With("component", "hub"),
		clients: make(map[string]*client),
	}
}

func (that *Hub) register(c *client) {
	that.mu.Lock()
	that.clients[c.id] = c
	total := len(that.clients)
	that.mu.Unlock()

	that.logger.Info("connection registered", "connID", c.id, "total", total)
}

func (that *Hub) unregister(c *client) {
	that.mu.Lock()
	if _, ok := that.clients[c.id]; ok {
		delete(that.clients, c.id)
		close(c.send)
	}
	total := len(that.clients)
	that.mu.Unlock()

	that.logger.Info("connection unregistered", "connID", c.id, "total", total)
}

// Send - fans an event out to the given connections. A slow consumer with a
// full buffer just misses the event rather than blocking the room.
func (that *Hub) Send(connIDs []string, event usecase.Event) {
	log := that.logger.With("method", "Send")

	raw, err := json.Marshal(event)
	if err != nil {
		log.Error("failed to marshal event", "action", event.Action, "error", err)
		return
	}

	for _, connID := range connIDs {
		that.trySend(connID, raw, event.Action)
	}
}

// trySend - holds the read lock across the channel send so unregister, which
// closes the channel under the write lock, cannot interleave.
func (that *Hub) trySend(connID string, raw []byte, action string) {
	log := that.logger.With("method", "Send")

	that.mu.RLock()
	defer that.mu.RUnlock()

	c, ok := that.clients[connID]
	if !ok {
		log.Warn("connection not found", "connID", connID, "action", action)
		return
	}

	select {
	case c.send <- raw:
	default:
		log.Warn("send buffer full, event dropped", "connID", connID, "action", action)
	}
}
