package live

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/database"
)

// Message types pushed to dashboard clients
const (
	MessageTypeReading = "reading"
	MessageTypeAlert   = "alert"
)

// ErrBacklogFull is returned when the hub cannot keep up with publishers
var ErrBacklogFull = errors.New("live feed backlog full")

// Envelope is the frame sent to every client
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// AlertPayload is an alert together with the location of its reading
type AlertPayload struct {
	*database.Alert
	Location string `json:"location,omitempty"`
}

// Hub maintains the set of connected dashboard clients and fans out
// readings and alerts to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewHub creates a hub. backlog bounds the number of frames waiting to be
// fanned out.
func NewHub(backlog int, logger *zap.Logger) *Hub {
	if backlog < 1 {
		backlog = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, backlog),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("Live client registered", zap.String("remote_addr", client.remoteAddr()))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Info("Live client unregistered", zap.String("remote_addr", client.remoteAddr()))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn("Live client too slow, dropping",
						zap.String("remote_addr", client.remoteAddr()))
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishReading pushes a persisted reading to all clients
func (h *Hub) PublishReading(_ context.Context, r *database.Reading) error {
	return h.publish(MessageTypeReading, r)
}

// PublishAlert pushes a persisted alert to all clients
func (h *Hub) PublishAlert(_ context.Context, a *database.Alert, location string) error {
	return h.publish(MessageTypeAlert, AlertPayload{Alert: a, Location: location})
}

// Publishing never blocks the evaluation path; frames are dropped when the
// backlog is full.
func (h *Hub) publish(messageType string, payload interface{}) error {
	data, err := json.Marshal(Envelope{Type: messageType, Payload: payload})
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- data:
		return nil
	default:
		return ErrBacklogFull
	}
}
