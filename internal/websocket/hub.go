package websocket

import (
	"encoding/json"
	"time"

	"github.com/tawtheeq/tawtheeq-backend/internal/app/model"
	"github.com/tawtheeq/tawtheeq-backend/pkg/logger"
)

// Event is a workflow notification pushed to connected staff dashboards.
type Event struct {
	Type         string                 `json:"type"` // submission_created, status_changed
	SubmissionID uint                   `json:"submission_id"`
	Status       model.SubmissionStatus `json:"status"`
	ActorID      uint                   `json:"actor_id,omitempty"`
	At           time.Time              `json:"at"`
}

const (
	EventSubmissionCreated = "submission_created"
	EventStatusChanged     = "status_changed"
)

// Hub fans workflow events out to every connected staff client.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
	}
}

// Run owns the client set; all map access happens on this goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			logger.Debug("Staff client connected to event hub", map[string]interface{}{
				"user_id":     client.UserID,
				"connections": len(h.clients),
			})

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				logger.Debug("Staff client disconnected from event hub", map[string]interface{}{
					"user_id":     client.UserID,
					"connections": len(h.clients),
				})
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow consumer: drop the connection rather than block the hub
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Broadcast queues an event for delivery to all connected staff clients.
// Never blocks the caller; events to a full hub are dropped with a warning.
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal hub event", err, map[string]interface{}{
			"type": event.Type,
		})
		return
	}

	select {
	case h.broadcast <- data:
	default:
		logger.Warn("Event hub broadcast buffer full, dropping event", map[string]interface{}{
			"type":          event.Type,
			"submission_id": event.SubmissionID,
		})
	}
}
