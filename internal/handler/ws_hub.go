package handler

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/quiet-aggression/internal/service"
)

// Event types sent over WebSocket.
const (
	EventConnected = "connected"
	EventDecision  = service.EventDecision
	EventGameOver  = service.EventGameOver
)

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Data      any    `json:"data"`
}

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Action    string `json:"action"` // "subscribe" or "unsubscribe"
	SessionID string `json:"session_id"`
}

// WSConn wraps a WebSocket connection with its client and subscriptions.
type WSConn struct {
	conn     *websocket.Conn
	clientID string
	send     chan []byte
}

// Hub manages WebSocket connections and session-channel subscriptions.
type Hub struct {
	mu          sync.RWMutex
	connections map[*WSConn]bool
	sessions    map[string]map[*WSConn]bool // sessionID -> set of connections
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*WSConn]bool),
		sessions:    make(map[string]map[*WSConn]bool),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

// Unregister removes a connection from the hub and all its subscriptions.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, c)
	for sessionID, conns := range h.sessions {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.sessions, sessionID)
		}
	}
	close(c.send)
}

// Subscribe adds a connection to a session channel.
func (h *Hub) Subscribe(c *WSConn, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*WSConn]bool)
	}
	h.sessions[sessionID][c] = true
}

// Unsubscribe removes a connection from a session channel.
func (h *Hub) Unsubscribe(c *WSConn, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.sessions[sessionID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.sessions, sessionID)
		}
	}
}

// BroadcastToSession sends an event to all connections subscribed to a session.
func (h *Hub) BroadcastToSession(sessionID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.sessions[sessionID] {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("clientId", c.clientID).Str("sessionId", sessionID).Msg("Dropping WebSocket message, buffer full")
		}
	}
}

// BroadcastToClient sends an event to a specific client across all their connections.
func (h *Hub) BroadcastToClient(clientID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("clientId", clientID).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.connections {
		if c.clientID == clientID {
			select {
			case c.send <- data:
			default:
			}
		}
	}
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// SessionSubscriberCount returns the number of connections subscribed to a session.
func (h *Hub) SessionSubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}
