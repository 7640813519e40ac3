package testutil

import (
	"sync"
	"time"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/operations"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/events"
)

// MockWebSocketHub captures WebSocket messages for testing
type MockWebSocketHub struct {
	mu       sync.Mutex
	Messages []WebSocketMessage
}

// WebSocketMessage represents a captured WebSocket message
type WebSocketMessage struct {
	Type events.MessageType
	Data interface{}
	Time time.Time
}

// BroadcastMessage captures WebSocket messages
func (m *MockWebSocketHub) BroadcastMessage(msgType events.MessageType, data interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Messages = append(m.Messages, WebSocketMessage{
		Type: msgType,
		Data: data,
		Time: time.Now(),
	})
}

// GetMessages returns all captured messages
func (m *MockWebSocketHub) GetMessages() []WebSocketMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	messages := make([]WebSocketMessage, len(m.Messages))
	copy(messages, m.Messages)
	return messages
}

// GetMessagesByType returns messages of a specific type
func (m *MockWebSocketHub) GetMessagesByType(msgType events.MessageType) []WebSocketMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	var filtered []WebSocketMessage
	for _, msg := range m.Messages {
		if msg.Type == msgType {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

// EventRecorder is a Listener that keeps every event
type EventRecorder struct {
	mu     sync.Mutex
	events []operations.Event
}

// OnEvent implements operations.Listener
func (r *EventRecorder) OnEvent(ev operations.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns the recorded events
func (r *EventRecorder) Events() []operations.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]operations.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Last returns the most recent event
func (r *EventRecorder) Last() (operations.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return operations.Event{}, false
	}
	return r.events[len(r.events)-1], true
}

// Messages returns the snapshot message of every event
func (r *EventRecorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Snapshot.Message)
	}
	return out
}
