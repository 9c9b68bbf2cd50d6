package service

// Event types emitted through a Broadcaster.
const (
	EventDecision = "decision"
	EventGameOver = "game_over"
)

// Broadcaster sends real-time events to connected clients.
// Implemented by the WebSocket hub.
type Broadcaster interface {
	BroadcastSessionEvent(sessionID string, eventType string, data any)
}

// NoopBroadcaster is a no-op implementation for testing or when WS is disabled.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastSessionEvent(string, string, any) {}
