package handler

import (
	"context"
	"log/slog"
	"net/http"

	"dchat/internal/domain"
	"dchat/internal/middleware"
	"dchat/internal/service"
	ws "dchat/internal/websocket"

	"github.com/gorilla/websocket"
)

// WebSocketHandler upgrades connections and hands them to the frame
// protocol. Authentication is optional at upgrade time: anonymous
// connections may subscribe and read history, but sends are rejected.
type WebSocketHandler struct {
	registry    *ws.Registry
	chatService *service.ChatService
	identity    domain.Identity
	upgrader    websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler. allowedOrigins
// follows the CORS middleware's semantics, with "*" accepting any
// origin.
func NewWebSocketHandler(registry *ws.Registry, chatService *service.ChatService, identity domain.Identity, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		registry:    registry,
		chatService: chatService,
		identity:    identity,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowedOrigins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(allowedOrigins))
	wildcard := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			wildcard = true
		}
		allowed[origin] = true
	}
	return func(r *http.Request) bool {
		if wildcard {
			return true
		}
		origin := r.Header.Get("Origin")
		// Non-browser clients send no Origin header.
		if origin == "" {
			return true
		}
		return allowed[origin]
	}
}

// HandleConnection handles WebSocket upgrade and connection
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	// Empty when the optional auth middleware saw no token
	userID, _ := middleware.GetUserID(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr))
		return
	}

	// The request context ends when this handler returns; the connection
	// outlives it.
	client := ws.NewClient(context.Background(), h.registry, conn, userID, h.chatService, h.identity)

	slog.Info("websocket connection established",
		slog.String("conn_id", client.ID()),
		slog.String("user_id", userID))

	go client.WritePump()
	go client.ReadPump()
}
