package websocket

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/events"
)

// fakeConn is an in-memory Connection
type fakeConn struct {
	mu      sync.Mutex
	written [][]byte
	types   []int
	reads   chan []byte
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{reads: make(chan []byte, 8)}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	c.types = append(c.types, messageType)
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	msg, ok := <-c.reads
	if !ok {
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
	return websocket.TextMessage, msg, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetPongHandler(func(string) error) {}
func (c *fakeConn) RemoteAddr() string                { return "127.0.0.1:9999" }

func (c *fakeConn) textMessages() []events.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Message
	for i, data := range c.written {
		if c.types[i] != websocket.TextMessage {
			continue
		}
		var msg events.Message
		if json.Unmarshal(data, &msg) == nil {
			out = append(out, msg)
		}
	}
	return out
}

func newTestHub(t *testing.T, opts Options) *Hub {
	t.Helper()
	hub := NewHub(opts, infrastructure.NewLoggerWithWriter(io.Discard, nil), nil)
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func TestHubDeliversToClients(t *testing.T) {
	hub := newTestHub(t, Options{})

	conn := newFakeConn()
	client := NewClient(hub, conn, "trace-1")
	hub.Register(client)
	go client.WritePump()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastMessage(events.MessageTypeStatus, domain.StatusSnapshot{State: "polling", Stage: "importing"})

	require.Eventually(t, func() bool { return len(conn.textMessages()) == 2 }, time.Second, 5*time.Millisecond)

	msgs := conn.textMessages()
	assert.Equal(t, events.MessageTypeConnect, msgs[0].Type)
	assert.Equal(t, "trace-1", msgs[0].TraceID)
	assert.Equal(t, client.ID(), msgs[0].Data.(map[string]interface{})["client_id"])

	assert.Equal(t, events.MessageTypeStatus, msgs[1].Type)
	assert.NotEmpty(t, msgs[1].ID)
	data := msgs[1].Data.(map[string]interface{})
	assert.Equal(t, "polling", data["state"])
	assert.Equal(t, "importing", data["stage"])
}

func TestHubUnregistersOnReadError(t *testing.T) {
	hub := newTestHub(t, Options{})

	conn := newFakeConn()
	client := NewClient(hub, conn, "")
	hub.Register(client)
	go client.ReadPump()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	close(conn.reads)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), hub.Stats()["total_connections"])
}

func TestHubDisconnectsSlowClients(t *testing.T) {
	hub := newTestHub(t, Options{SendBuffer: 1})

	// no write pump: the connect message fills the buffer
	client := NewClient(hub, newFakeConn(), "")
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastMessage(events.MessageTypeStatus, "x")
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubStop(t *testing.T) {
	hub := NewHub(Options{}, nil, nil)
	hub.Start()

	client := NewClient(hub, newFakeConn(), "")
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Stop()
	hub.Stop()
	assert.Zero(t, hub.ClientCount())

	// drains the connect message, then ends because the channel is closed
	for range client.send {
	}

	hub.BroadcastMessage(events.MessageTypeStatus, "late")
	assert.Equal(t, int64(1), hub.Stats()["messages_dropped"])

	late := NewClient(hub, newFakeConn(), "")
	hub.Register(late)
	_, open := <-late.send
	assert.False(t, open)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultPingPeriod, o.PingPeriod)
	assert.Greater(t, o.PongWait, o.PingPeriod)
	assert.Equal(t, DefaultQueueSize, o.QueueSize)

	o = Options{PingPeriod: time.Second, PongWait: 500 * time.Millisecond}.withDefaults()
	assert.Greater(t, o.PongWait, o.PingPeriod)
}

func TestHandlerServesEvents(t *testing.T) {
	hub := newTestHub(t, Options{})
	handler := NewHandler(hub, 1024, 1024, []string{"http://allowed.example"}, nil)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var connect events.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&connect))
	assert.Equal(t, events.MessageTypeConnect, connect.Type)

	hub.BroadcastMessage(events.MessageTypeChart, domain.ChartSpec{Revision: 3})

	var chart events.Message
	require.NoError(t, conn.ReadJSON(&chart))
	assert.Equal(t, events.MessageTypeChart, chart.Type)
	assert.Equal(t, float64(3), chart.Data.(map[string]interface{})["revision"])
}

func TestHandlerChecksOrigin(t *testing.T) {
	hub := newTestHub(t, Options{})
	handler := NewHandler(hub, 1024, 1024, []string{"http://allowed.example"}, nil)

	srv := httptest.NewServer(handler)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"http://allowed.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}
