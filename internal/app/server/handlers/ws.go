package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"parley/internal/app/server/ws"
	"parley/internal/config"
	"parley/internal/core/services"
	"parley/pkg/logging"
)

type WSHandler struct {
	manager  services.IManagerService
	upgrader *websocket.Upgrader
	cfg      config.WebSocketConfig
	log      *slog.Logger
}

func NewWSHandler(
	log *slog.Logger,
	manager services.IManagerService,
	cfg config.WebSocketConfig,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		log:      log,
		manager:  manager,
		upgrader: ws.NewUpgrader(cfg, allowedOrigins),
		cfg:      cfg,
	}
}

// Handler upgrades an authenticated request and serves the connection until
// either side closes it.
func (s *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), s.log)
	userID, ok := currentUser(w, r)
	if !ok {
		log.ErrorContext(r.Context(), "ws handler - unauthorised missing user_id")
		return
	}
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("user.id", userID))
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade - ws upgrade failed", logging.Err(err))
		return
	}
	// the session outlives the upgrade request
	sessionCtx := context.WithoutCancel(r.Context())
	socket := ws.NewWebSocket(conn, s.cfg, log)
	client := ws.NewClient(sessionCtx, socket, userID, s.cfg.SendBuffer, log)
	defer client.Close()

	if err := s.manager.HandleConnect(sessionCtx, client); err != nil {
		log.ErrorContext(sessionCtx, "ws handler - handle connect - failed", logging.User(userID), logging.Err(err))
		return
	}
	if !client.MarkConnected() {
		_ = s.manager.HandleDisconnect(sessionCtx, client)
		return
	}
	log.InfoContext(sessionCtx, "ws handler - ws connection established", logging.User(userID), logging.Conn(client.ID()))

	hbCtx, stopHeartbeat := context.WithCancel(sessionCtx)
	go s.manager.HandleHeartbeat(hbCtx, userID)

	socket.ReadLoop(sessionCtx, func(data []byte) {
		_ = s.manager.HandleMessage(sessionCtx, client, data)
	})

	stopHeartbeat()
	_ = s.manager.HandleDisconnect(sessionCtx, client)
	log.InfoContext(sessionCtx, "ws handler - ws connection closed", logging.User(userID), logging.Conn(client.ID()))
}
