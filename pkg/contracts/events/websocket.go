// Package events contains the event contract for WebSocket communication
// between the forecast controller and connected pages.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// MessageTypeStatus carries a domain.StatusSnapshot
	MessageTypeStatus MessageType = "forecast:status"
	// MessageTypeChart carries a domain.ChartSpec after a redraw
	MessageTypeChart MessageType = "forecast:chart"
	// MessageTypeError carries an ErrorPayload for a terminal job failure
	MessageTypeError MessageType = "forecast:error"

	// Connection messages
	MessageTypeConnect MessageType = "connect"
)

// Message represents a complete WebSocket message
type Message struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// ErrorPayload describes a job failure pushed to the page
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage,omitempty"`
}
