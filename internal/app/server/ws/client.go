package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"parley/pkg/logging"
)

var (
	ErrClientClosed   = errors.New("client closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// ConnState is the lifecycle of one connection. Disconnected is terminal.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateConnected
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "connecting"
	}
}

// RuntimeClient is one live websocket connection. Frames queued with Send
// are written by a single writer goroutine, which also keeps the connection
// alive with pings.
type RuntimeClient struct {
	ctx    context.Context
	cancel context.CancelFunc
	ws     *WebSocket
	id     string
	userID string
	out    chan []byte
	state  atomic.Int32
	once   sync.Once
	log    *slog.Logger
}

func NewClient(
	parent context.Context,
	ws *WebSocket,
	userID string,
	sendBuffer int,
	log *slog.Logger,
) *RuntimeClient {
	if sendBuffer <= 0 {
		sendBuffer = 1
	}
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:    ctx,
		cancel: cancel,
		ws:     ws,
		id:     uuid.NewString(),
		userID: userID,
		out:    make(chan []byte, sendBuffer),
		log:    log,
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ID() string     { return c.id }
func (c *RuntimeClient) UserID() string { return c.userID }

func (c *RuntimeClient) State() ConnState { return ConnState(c.state.Load()) }

// MarkConnected moves a connecting client to connected. It fails once the
// client has been closed.
func (c *RuntimeClient) MarkConnected() bool {
	return c.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected))
}

// Done is closed when the client shuts down.
func (c *RuntimeClient) Done() <-chan struct{} { return c.ctx.Done() }

// Send never blocks: a closed client or a full buffer drops the frame.
func (c *RuntimeClient) Send(_ context.Context, data []byte) error {
	if c.ctx.Err() != nil {
		return ErrClientClosed
	}
	select {
	case c.out <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.state.Store(int32(StateDisconnected))
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) writeLoop() {
	defer c.Close()
	var ping <-chan time.Time
	if c.ws.cfg.PingInterval > 0 {
		ticker := time.NewTicker(c.ws.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.out:
			if err := c.ws.WriteMessage(data); err != nil {
				c.log.Debug("ws - write loop - write failed", logging.Conn(c.id), logging.Err(err))
				return
			}
		case <-ping:
			if err := c.ws.WritePing(); err != nil {
				c.log.Debug("ws - write loop - ping failed", logging.Conn(c.id), logging.Err(err))
				return
			}
		}
	}
}
