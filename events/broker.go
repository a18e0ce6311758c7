package events

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// EventBroker manages SSE connections and broadcasts deployment events
type EventBroker struct {
	clients map[chan string]bool
	mu      sync.RWMutex
	logger  *slog.Logger
}

// NewBroker creates a broker with no clients.
func NewBroker(logger *slog.Logger) *EventBroker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &EventBroker{
		clients: make(map[chan string]bool),
		logger:  logger,
	}
}

// Register adds a new SSE client
func (b *EventBroker) Register(client chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = true
	b.logger.Debug("sse client connected", "clients", len(b.clients))
}

// Unregister removes an SSE client and closes its channel.
func (b *EventBroker) Unregister(client chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.clients[client] {
		return
	}
	delete(b.clients, client)
	close(client)
	b.logger.Debug("sse client disconnected", "clients", len(b.clients))
}

// ClientCount returns the number of connected clients.
func (b *EventBroker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends an event to all connected clients. Clients with a full
// buffer miss the event.
func (b *EventBroker) Broadcast(eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		b.logger.Warn("failed to marshal event data", "event", eventType, "error", err)
		return
	}
	message := fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, string(jsonData))

	b.mu.RLock()
	defer b.mu.RUnlock()

	dropped := 0
	for client := range b.clients {
		select {
		case client <- message:
		default:
			dropped++
		}
	}

	b.logger.Debug("broadcast event", "event", eventType, "clients", len(b.clients), "dropped", dropped)
}
