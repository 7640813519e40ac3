package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// Connection is what a Client needs from a socket. Tests drive the pumps
// with an in-memory implementation.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}

// socket is a gorilla connection with the remote address flattened to a string
type socket struct {
	*websocket.Conn
}

// NewConnectionWrapper wraps an upgraded gorilla connection
func NewConnectionWrapper(conn *websocket.Conn) Connection {
	return socket{Conn: conn}
}

func (s socket) RemoteAddr() string {
	if addr := s.Conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
