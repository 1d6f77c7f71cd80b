package sse

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/scandishop/storefront_api/internal/cart"
)

// EventType defines the SSE event name.
type EventType string

const (
	EventCartChanged EventType = "cart.changed"
)

// CartEvent is the payload pushed to tabs watching a cart.
type CartEvent struct {
	Event     EventType       `json:"event"`
	CartID    string          `json:"cartId"`
	TabID     string          `json:"tabId"`
	Items     []cart.LineItem `json:"items"`
	Count     int             `json:"count"`
	Total     decimal.Decimal `json:"total"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client represents a connected tab.
type Client struct {
	ID     string
	CartID string
	TabID  string
	Events chan []byte
}

// Hub manages SSE client connections and broadcasts.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a new SSE hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a new client watching cartID from tabID and returns it for
// streaming.
func (h *Hub) Register(clientID, cartID, tabID string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := &Client{
		ID:     clientID,
		CartID: cartID,
		TabID:  tabID,
		Events: make(chan []byte, 64),
	}
	h.clients[clientID] = c
	log.Info().Str("client_id", clientID).Str("cart_id", cartID).Int("total_clients", len(h.clients)).Msg("SSE client connected")
	return c
}

// Unregister removes a client and closes its channel.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[clientID]; ok {
		close(c.Events)
		delete(h.clients, clientID)
		log.Info().Str("client_id", clientID).Int("total_clients", len(h.clients)).Msg("SSE client disconnected")
	}
}

// Broadcast sends an event to every client of the event's cart except the
// tab that caused it.
// Non-blocking: drops message if client buffer is full.
func (h *Hub) Broadcast(event *CartEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if c.CartID != event.CartID || c.TabID == event.TabID {
			continue
		}
		select {
		case c.Events <- data:
		default:
			log.Warn().Str("client_id", c.ID).Msg("SSE client buffer full, dropping event")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
