package web

import (
	"sync"

	"github.com/pipali/pipali/internal/logger"
)

// Hub maintains the set of connected UI clients and broadcasts
// confirmation events to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *WebMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	quit       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *WebMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

// Run processes hub events until Stop.
func (h *Hub) Run() {
	logger.Info("web: hub started")
	defer logger.Info("web: hub stopped")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Debug("web: client registered: %s", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			logger.Debug("web: client unregistered: %s", client.ID)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client, drop it.
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()

		case <-h.quit:
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.quit)
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast queues a message for all clients without blocking the caller.
func (h *Hub) Broadcast(message *WebMessage) {
	select {
	case h.broadcast <- message:
	default:
		logger.Warn("web: broadcast channel full, dropping message")
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
