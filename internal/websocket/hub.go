package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/events"
)

// Defaults used when Options leaves a field at zero
const (
	DefaultPingPeriod = 54 * time.Second
	DefaultPongWait   = 60 * time.Second
	DefaultQueueSize  = 256
	DefaultSendBuffer = 64
)

// Options tunes the hub and its clients
type Options struct {
	PingPeriod time.Duration
	PongWait   time.Duration
	// QueueSize bounds the broadcast queue; messages beyond it are dropped
	QueueSize int
	// SendBuffer bounds each client's outbound queue; a client that falls
	// this far behind is disconnected
	SendBuffer int
}

func (o Options) withDefaults() Options {
	if o.PingPeriod <= 0 {
		o.PingPeriod = DefaultPingPeriod
	}
	if o.PongWait <= o.PingPeriod {
		o.PongWait = o.PingPeriod * 10 / 9
		if o.PongWait <= o.PingPeriod {
			o.PongWait = o.PingPeriod + time.Second
		}
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = DefaultSendBuffer
	}
	return o
}

// Hub maintains the set of connected pages and fans forecast events out to
// them
type Hub struct {
	clients map[*Client]struct{}

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	opts    Options
	logger  *slog.Logger
	metrics *OTelMetrics

	totalConnections int64
	messagesSent     int64
	messagesDropped  int64
}

// NewHub creates a hub. metrics may be nil.
func NewHub(opts Options, logger *slog.Logger, metrics *OTelMetrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	opts = opts.withDefaults()

	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, opts.QueueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		opts:       opts,
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
	}
}

// Start runs the hub loop in a new goroutine. It is a no-op when the hub is
// already running or stopped.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	select {
	case <-h.quit:
		return
	default:
	}
	h.running = true
	go h.run()
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.quit:
			h.closeAll()
			h.logger.Info("hub_stopped")
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client, "closed")

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	atomic.AddInt64(&h.totalConnections, 1)

	ctx := client.context()
	h.metrics.RecordConnection(ctx)
	h.logger.InfoContext(ctx, "client_registered",
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr),
		slog.Int("total_clients", count))

	connect, err := h.encode(events.MessageTypeConnect, map[string]string{
		"client_id":   client.id,
		"api_version": contracts.APIVersion,
	}, client.traceID)
	if err != nil {
		return
	}
	select {
	case client.send <- connect:
	default:
		h.logger.WarnContext(ctx, "connect_message_dropped", slog.String("client_id", client.id))
	}
}

func (h *Hub) removeClient(client *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	duration := time.Since(client.connectedAt)
	h.metrics.RecordDisconnection(ctx, duration, reason)
	h.logger.InfoContext(ctx, "client_unregistered",
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", duration),
		slog.Int("total_clients", count))
}

func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			h.removeClient(client, "slow_consumer")
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// BroadcastMessage queues a typed message for every connected client. The
// message is dropped when the queue is full or the hub is stopped.
func (h *Hub) BroadcastMessage(msgType events.MessageType, data interface{}) {
	payload, err := h.encode(msgType, data, "")
	if err != nil {
		return
	}

	select {
	case <-h.quit:
		h.drop(msgType, "stopped")
		return
	default:
	}

	select {
	case h.broadcast <- payload:
		atomic.AddInt64(&h.messagesSent, 1)
	default:
		h.drop(msgType, "queue_full")
	}
}

func (h *Hub) drop(msgType events.MessageType, reason string) {
	atomic.AddInt64(&h.messagesDropped, 1)
	h.metrics.RecordDroppedMessage(context.Background(), string(msgType), reason)
	h.logger.Warn("message_dropped",
		slog.String("message_type", string(msgType)),
		slog.String("reason", reason))
}

func (h *Hub) encode(msgType events.MessageType, data interface{}, traceID string) ([]byte, error) {
	payload, err := json.Marshal(events.Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		TraceID:   traceID,
		Data:      data,
	})
	if err != nil {
		h.logger.Error("message_marshal_failed",
			slog.String("message_type", string(msgType)),
			slog.String("error", err.Error()))
		return nil, err
	}
	return payload, nil
}

// Register attaches a client. The client's send channel is closed at once
// when the hub has stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		close(client.send)
	}
}

// Unregister detaches a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns hub counters
func (h *Hub) Stats() map[string]int64 {
	return map[string]int64{
		"active_clients":    int64(h.ClientCount()),
		"total_connections": atomic.LoadInt64(&h.totalConnections),
		"messages_queued":   atomic.LoadInt64(&h.messagesSent),
		"messages_dropped":  atomic.LoadInt64(&h.messagesDropped),
	}
}

// Stop closes every client and ends the hub loop
func (h *Hub) Stop() {
	h.mu.Lock()
	select {
	case <-h.quit:
		h.mu.Unlock()
		return
	default:
	}
	close(h.quit)
	running := h.running
	h.running = false
	h.mu.Unlock()

	if running {
		<-h.done
	}
}
