package operations

import (
	"log/slog"
	"sync"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/events"
)

// StatusBroadcaster pushes machine events to the WebSocket hub. Events are
// queued and handled by a single goroutine so pages see them in order and
// the machine never waits on a slow hub.
type StatusBroadcaster struct {
	mu       sync.RWMutex
	latest   domain.StatusSnapshot
	hub      WebSocketHub
	charts   ChartSource
	logger   *slog.Logger
	updates  chan Event
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewStatusBroadcaster creates a broadcaster and starts its update loop.
// charts may be nil, in which case no chart messages are sent.
func NewStatusBroadcaster(hub WebSocketHub, charts ChartSource, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	sb := &StatusBroadcaster{
		hub:     hub,
		charts:  charts,
		logger:  logger.With(slog.String("component", "status_broadcaster")),
		updates: make(chan Event, 100),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go sb.processUpdates()

	return sb
}

// OnEvent implements Listener
func (sb *StatusBroadcaster) OnEvent(ev Event) {
	sb.mu.Lock()
	sb.latest = ev.Snapshot
	sb.mu.Unlock()

	select {
	case sb.updates <- ev:
	case <-sb.stop:
	}
}

// Latest returns the most recent snapshot seen
func (sb *StatusBroadcaster) Latest() domain.StatusSnapshot {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.latest
}

// processUpdates handles all updates sequentially
func (sb *StatusBroadcaster) processUpdates() {
	defer close(sb.done)
	for {
		select {
		case <-sb.stop:
			return
		case ev := <-sb.updates:
			sb.handleUpdate(ev)
		}
	}
}

// handleUpdate sends the snapshot, then the error and chart when relevant
func (sb *StatusBroadcaster) handleUpdate(ev Event) {
	if sb.hub == nil {
		return
	}

	sb.logger.Debug("broadcasting_status",
		slog.String("kind", string(ev.Kind)),
		slog.String("state", ev.Snapshot.State),
		slog.String("stage", ev.Snapshot.Stage),
		slog.String("job_id", ev.Snapshot.JobID))

	sb.hub.BroadcastMessage(events.MessageTypeStatus, ev.Snapshot)

	if ev.Err != nil {
		sb.hub.BroadcastMessage(events.MessageTypeError, events.ErrorPayload{
			Code:    string(ev.Err.Type),
			Message: ev.Err.Message,
			Stage:   ev.Err.Stage,
		})
	}

	if sb.charts != nil && (ev.Kind == EventResult || ev.Kind == EventData) {
		sb.hub.BroadcastMessage(events.MessageTypeChart, sb.charts.Current())
	}
}

// Stop gracefully shuts down the broadcaster. Queued events are dropped.
func (sb *StatusBroadcaster) Stop() {
	sb.stopOnce.Do(func() {
		close(sb.stop)
	})
	<-sb.done
}
