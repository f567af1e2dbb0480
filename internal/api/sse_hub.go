package api

import (
	"encoding/json"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// AssignmentEvent is pushed to dashboard clients after every enrollment
type AssignmentEvent struct {
	EventType string                 `json:"event_type"`
	SubjectID string                 `json:"subject_id,omitempty"`
	Strata    string                 `json:"strata,omitempty"`
	Group     string                 `json:"group,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// SSEHub manages Server-Sent Events for live assignment updates
type SSEHub struct {
	clients    map[chan AssignmentEvent]bool
	clientsMu  sync.RWMutex
	register   chan chan AssignmentEvent
	unregister chan chan AssignmentEvent
	broadcast  chan AssignmentEvent
	done       chan struct{}
	closeOnce  sync.Once
	keepAlive  time.Duration
}

// NewSSEHub creates a new SSE hub and starts its dispatch loop
func NewSSEHub() *SSEHub {
	hub := &SSEHub{
		clients:    make(map[chan AssignmentEvent]bool),
		register:   make(chan chan AssignmentEvent, 10),
		unregister: make(chan chan AssignmentEvent, 10),
		broadcast:  make(chan AssignmentEvent, 100),
		done:       make(chan struct{}),
		keepAlive:  30 * time.Second,
	}

	go hub.run()
	return hub
}

// run processes SSE hub operations
func (h *SSEHub) run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			log.Printf("[SSE] Client registered (total clients: %d)", len(h.clients))
			h.clientsMu.Unlock()

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if h.clients[client] {
				delete(h.clients, client)
				close(client)
				log.Printf("[SSE] Client unregistered (remaining clients: %d)", len(h.clients))
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			for clientChan := range h.clients {
				select {
				case clientChan <- event:
				default:
					// Client channel is full, skip
					log.Printf("[SSE] Client channel full, skipping %s event", event.EventType)
				}
			}
			h.clientsMu.RUnlock()

		case <-h.done:
			h.clientsMu.Lock()
			for clientChan := range h.clients {
				close(clientChan)
			}
			h.clients = make(map[chan AssignmentEvent]bool)
			h.clientsMu.Unlock()
			return
		}
	}
}

// Broadcast sends an event to every connected client
func (h *SSEHub) Broadcast(event AssignmentEvent) {
	select {
	case h.broadcast <- event:
	default:
		log.Printf("[SSE] Broadcast channel full, dropping event: %s", event.EventType)
	}
}

// Close stops the dispatch loop and disconnects all clients
func (h *SSEHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Subscribe registers a client channel; the returned function unregisters it
func (h *SSEHub) Subscribe() (<-chan AssignmentEvent, func(), bool) {
	clientChan := make(chan AssignmentEvent, 10)
	select {
	case h.register <- clientChan:
	default:
		return nil, nil, false
	}
	return clientChan, func() {
		select {
		case h.unregister <- clientChan:
		default:
			// Hub might be overloaded
		}
	}, true
}

// HandleSSE handles the Server-Sent Events endpoint
func (h *SSEHub) HandleSSE(c *gin.Context) {
	events, unsubscribe, ok := h.Subscribe()
	if !ok {
		c.JSON(500, gin.H{"error": "SSE hub registration failed"})
		return
	}
	defer unsubscribe()

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, open := <-events:
			if !open {
				return false
			}
			eventJSON, err := json.Marshal(event)
			if err != nil {
				log.Printf("[SSE] Failed to marshal event: %v", err)
				return true
			}
			c.SSEvent(event.EventType, string(eventJSON))
			return true

		case <-time.After(h.keepAlive):
			// Send ping to keep connection alive
			c.SSEvent("ping", `{"status": "alive", "timestamp": "`+time.Now().Format(time.RFC3339)+`"}`)
			return true

		case <-ctx.Done():
			// Client disconnected
			return false
		}
	})
}

// ClientCount returns the number of connected clients
func (h *SSEHub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}
