package operations

import (
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/dataset"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/events"
)

// SeriesStore is the dataset the machine reads on submit and extends with
// results
type SeriesStore interface {
	Snapshot() dataset.Snapshot
	Replace(series []float64, origin domain.SeriesOrigin)
	Append(values []float64)
}

// WebSocketHub interface for sending WebSocket messages
type WebSocketHub interface {
	BroadcastMessage(msgType events.MessageType, data interface{})
}

// ChartSource supplies the chart to push after a redraw
type ChartSource interface {
	Current() domain.ChartSpec
}

// EventKind tells listeners what changed
type EventKind string

const (
	// EventState is any lifecycle transition
	EventState EventKind = "state"
	// EventResult follows a successful fetch; the series grew
	EventResult EventKind = "result"
	// EventData follows a manual replacement of the series
	EventData EventKind = "data"
)

// Event is delivered to listeners after the machine lock is released
type Event struct {
	Kind     EventKind
	Snapshot domain.StatusSnapshot
	// Err is set when the transition was caused by a job error
	Err *OperationError
}

// Listener observes machine events. Listeners run synchronously, in order,
// and must not call Submit, Cancel, Replace or Close from OnEvent.
type Listener interface {
	OnEvent(ev Event)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(ev Event)

// OnEvent calls f(ev)
func (f ListenerFunc) OnEvent(ev Event) {
	f(ev)
}
