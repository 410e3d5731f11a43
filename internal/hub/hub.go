// Package hub streams change events to browsers over SSE.
package hub

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"cellstore/internal/notify"
)

// Client represents a connected SSE client
type Client struct {
	id     string
	tenant string
	events chan []byte
}

// Hub manages SSE client connections. Clients may subscribe to a single
// tenant's events or, with no tenant filter, to everything.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan notify.Event
}

// New creates a new Hub
func New() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan notify.Event, 256),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("SSE client connected: %s (total: %d)", client.id, total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.events)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("SSE client disconnected: %s (total: %d)", client.id, total)

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("Failed to marshal event: %v", err)
				continue
			}

			msg := fmt.Sprintf("data: %s\n\n", data)

			h.mu.RLock()
			for client := range h.clients {
				if client.tenant != "" && client.tenant != event.Tenant {
					continue
				}
				select {
				case client.events <- []byte(msg):
				default:
					// Client is slow, skip this message
					log.Printf("SSE client %s is slow, skipping message", client.id)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues an event for delivery to matching clients
func (h *Hub) Broadcast(event notify.Event) {
	select {
	case h.broadcast <- event:
	default:
		log.Println("Broadcast channel full, dropping event")
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles SSE connections. A ?tenant= query parameter limits
// the stream to that tenant's events.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	client := &Client{
		id:     fmt.Sprintf("%d", time.Now().UnixNano()),
		tenant: r.URL.Query().Get("tenant"),
		events: make(chan []byte, 64),
	}

	h.register <- client
	defer func() {
		h.unregister <- client
	}()

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.events:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
