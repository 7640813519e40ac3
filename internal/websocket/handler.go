package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// Handler upgrades /ws requests and attaches the connection to the hub
type Handler struct {
	hub            *Hub
	upgrader       websocket.Upgrader
	allowedOrigins []string
	logger         *slog.Logger
}

// NewHandler creates an upgrade handler. An origin is accepted when it is in
// allowedOrigins, when allowedOrigins contains "*", or when it matches the
// request host.
func NewHandler(hub *Hub, readBuffer, writeBuffer int, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = hub.logger
	}
	h := &Handler{
		hub:            hub,
		allowedOrigins: allowedOrigins,
		logger:         logger.With(slog.String("component", "websocket.handler")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  readBuffer,
		WriteBufferSize: writeBuffer,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}

	h.logger.WarnContext(r.Context(), "origin_rejected", slog.String("origin", origin))
	return false
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.WarnContext(ctx, "upgrade_failed", slog.String("error", err.Error()))
		return
	}

	client := NewClient(h.hub, NewConnectionWrapper(conn), middleware.GetReqID(ctx))
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
