package ws

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"parley/internal/config"
	"parley/pkg/logging"
)

// NewUpgrader builds the HTTP upgrader. An empty origin list accepts any
// origin.
func NewUpgrader(cfg config.WebSocketConfig, allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			return slices.Contains(allowedOrigins, origin)
		},
	}
}

type WebSocket struct {
	*websocket.Conn
	cfg config.WebSocketConfig
	log *slog.Logger
}

func NewWebSocket(conn *websocket.Conn, cfg config.WebSocketConfig, log *slog.Logger) *WebSocket {
	return &WebSocket{Conn: conn, cfg: cfg, log: log}
}

func (w *WebSocket) pongWait() time.Duration {
	if w.cfg.PingInterval <= 0 {
		return 0
	}
	return 2 * w.cfg.PingInterval
}

func (w *WebSocket) WriteMessage(data []byte) error {
	w.Conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
	return w.Conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WebSocket) WritePing() error {
	return w.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.cfg.WriteTimeout))
}

// ReadLoop delivers every text frame to onMsg, in order, until the peer goes
// away or stops answering pings.
func (w *WebSocket) ReadLoop(ctx context.Context, onMsg func([]byte)) {
	defer w.Close()

	if w.cfg.ReadLimit > 0 {
		w.Conn.SetReadLimit(w.cfg.ReadLimit)
	}
	if wait := w.pongWait(); wait > 0 {
		w.Conn.SetReadDeadline(time.Now().Add(wait))
		w.Conn.SetPongHandler(func(string) error {
			return w.Conn.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		kind, data, err := w.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				w.log.WarnContext(ctx, "ws - read loop - unexpected close", logging.Err(err))
			}
			return
		}
		if kind != websocket.TextMessage || len(data) == 0 {
			continue
		}
		onMsg(data)
	}
}

func (w *WebSocket) Close() {
	_ = w.Conn.Close()
}
