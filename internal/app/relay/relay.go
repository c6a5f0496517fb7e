package relay

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"parley/internal/app/registry"
	"parley/internal/core/contracts"
	"parley/internal/core/domain"
	"parley/pkg/logging"
)

var ErrRelayStopped = errors.New("relay stopped")

var tracer = otel.Tracer("relay")

// Relay routes realtime events between connections. Every operation is
// queued to a single loop goroutine and runs to completion there, in arrival
// order, so the registry and broker need no locking.
type Relay struct {
	reg     *registry.Registry
	calls   *Broker
	journal contracts.CallJournal
	ops     chan func(context.Context)
	done    chan struct{}
	log     *slog.Logger
}

// NewRelay builds a relay around reg. journal may be nil.
func NewRelay(
	log *slog.Logger,
	reg *registry.Registry,
	journal contracts.CallJournal,
	queueSize int,
) *Relay {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Relay{
		reg:     reg,
		calls:   NewBroker(),
		journal: journal,
		ops:     make(chan func(context.Context), queueSize),
		done:    make(chan struct{}),
		log:     log,
	}
}

// Run processes queued operations until ctx is done, then closes every
// connection. It must be called exactly once.
func (r *Relay) Run(ctx context.Context) error {
	r.log.InfoContext(ctx, "relay - run - loop started")
	defer func() {
		r.reg.Clear()
		r.calls.clear()
		close(r.done)
		r.log.Info("relay - run - loop stopped")
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case op := <-r.ops:
			op(ctx)
		}
	}
}

func (r *Relay) submit(ctx context.Context, op func(context.Context)) error {
	select {
	case <-r.done:
		return ErrRelayStopped
	default:
	}
	select {
	case r.ops <- op:
		return nil
	case <-r.done:
		return ErrRelayStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// query runs fn on the loop and waits for its result.
func query[T any](ctx context.Context, r *Relay, fn func(context.Context) T) (T, error) {
	var zero T
	res := make(chan T, 1)
	if err := r.submit(ctx, func(loop context.Context) { res <- fn(loop) }); err != nil {
		return zero, err
	}
	select {
	case v := <-res:
		return v, nil
	case <-r.done:
		return zero, ErrRelayStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// linked keeps the loop's lifetime but carries the caller's trace.
func linked(loop, caller context.Context) context.Context {
	return trace.ContextWithSpanContext(loop, trace.SpanContextFromContext(caller))
}

func (r *Relay) Connect(ctx context.Context, c contracts.Client) error {
	return r.submit(ctx, func(loop context.Context) {
		lctx := linked(loop, ctx)
		r.reg.Register(c)
		r.log.InfoContext(lctx, "relay - connect - client registered", logging.User(c.UserID()), logging.Conn(c.ID()))
		r.broadcastPresence(lctx)
	})
}

func (r *Relay) Disconnect(ctx context.Context, c contracts.Client) error {
	return r.submit(ctx, func(loop context.Context) {
		lctx := linked(loop, ctx)
		for _, roomID := range r.reg.Unregister(c) {
			if r.calls.Has(roomID) {
				r.leaveCall(lctx, roomID, c.ID(), true)
			}
		}
		r.log.InfoContext(lctx, "relay - disconnect - client removed", logging.User(c.UserID()), logging.Conn(c.ID()))
		r.broadcastPresence(lctx)
	})
}

func (r *Relay) Handle(ctx context.Context, c contracts.Client, in domain.Inbound) error {
	return r.submit(ctx, func(loop context.Context) {
		lctx, span := tracer.Start(linked(loop, ctx), "Relay.Handle", trace.WithAttributes(
			attribute.String("event", in.Name()),
			attribute.String("conn_id", c.ID()),
		))
		defer span.End()
		if _, ok := r.reg.Client(c.ID()); !ok {
			r.log.DebugContext(lctx, "relay - handle - connection not registered", logging.Conn(c.ID()), logging.Event(in.Name()))
			return
		}
		r.dispatch(lctx, c, in)
	})
}

func (r *Relay) dispatch(ctx context.Context, c contracts.Client, in domain.Inbound) {
	switch ev := in.(type) {
	case domain.JoinRoom:
		r.joinRoom(ctx, c, ev)
	case domain.LeaveRoom:
		r.leaveRoom(ctx, c, ev.RoomID)
	case domain.Offer:
		r.forward(ctx, c, ev.RoomID, ev)
	case domain.Answer:
		r.forward(ctx, c, ev.RoomID, ev)
	case domain.ICECandidate:
		r.forward(ctx, c, ev.RoomID, ev)
	case domain.EndCall:
		r.forward(ctx, c, ev.RoomID, ev)
		if r.reg.Rooms().Leave(ev.RoomID, c.ID()) && r.calls.Has(ev.RoomID) {
			r.leaveCall(ctx, ev.RoomID, c.ID(), false)
		}
	case domain.TypingStart:
		r.typing(ctx, c, ev.To, domain.TypingStarted{From: c.UserID()})
	case domain.TypingStop:
		r.typing(ctx, c, ev.To, domain.TypingStopped{From: c.UserID()})
	default:
		r.log.WarnContext(ctx, "relay - dispatch - unhandled event", logging.Event(in.Name()))
	}
}

func (r *Relay) joinRoom(ctx context.Context, c contracts.Client, ev domain.JoinRoom) {
	if ev.Kind != domain.RoomCall {
		r.reg.Rooms().Join(ev.RoomID, c.ID())
		return
	}
	res, err := r.calls.Join(ev.RoomID, c.ID(), c.UserID())
	if err != nil {
		r.log.InfoContext(ctx, "relay - join room - call rejected", logging.Room(ev.RoomID), logging.Conn(c.ID()), logging.Err(err))
		r.sendError(ctx, c.ID(), err)
		return
	}
	r.reg.Rooms().Join(ev.RoomID, c.ID())
	if res.Notify != "" {
		r.send(ctx, res.Notify, domain.PeerJoined{RoomID: ev.RoomID})
	}
	if res.Record != nil {
		r.record(ctx, *res.Record)
	}
}

func (r *Relay) leaveRoom(ctx context.Context, c contracts.Client, roomID string) {
	if !r.reg.Rooms().Leave(roomID, c.ID()) {
		return
	}
	if r.calls.Has(roomID) {
		r.leaveCall(ctx, roomID, c.ID(), true)
	}
}

// leaveCall advances the broker; when notify is set the peer left behind in
// an ended call is told with webrtc:end.
func (r *Relay) leaveCall(ctx context.Context, roomID, connID string, notify bool) {
	res := r.calls.Leave(roomID, connID)
	if !res.Left {
		return
	}
	if notify && res.State == CallEnded {
		for _, other := range res.Remaining {
			r.send(ctx, other, domain.EndCall{RoomID: roomID})
		}
	}
	if res.Record != nil {
		r.record(ctx, *res.Record)
	}
}

// forward relays a signaling payload to every other member of an existing
// room. Membership of the sender is not checked.
func (r *Relay) forward(ctx context.Context, c contracts.Client, roomID string, ev domain.Outbound) {
	if !r.reg.Rooms().Exists(roomID) {
		r.log.DebugContext(ctx, "relay - forward - unknown room", logging.Room(roomID), logging.Event(ev.Name()))
		return
	}
	data, err := domain.EncodeFrame(ev)
	if err != nil {
		r.log.ErrorContext(ctx, "relay - forward - encode failed", logging.Event(ev.Name()), logging.Err(err))
		return
	}
	r.reg.Broadcast(ctx, roomID, data, c.ID())
}

func (r *Relay) typing(ctx context.Context, c contracts.Client, to string, ev domain.Outbound) {
	if to == c.UserID() {
		return
	}
	data, err := domain.EncodeFrame(ev)
	if err != nil {
		return
	}
	r.reg.SendToUser(ctx, to, data)
}

func (r *Relay) send(ctx context.Context, connID string, ev domain.Outbound) {
	data, err := domain.EncodeFrame(ev)
	if err != nil {
		r.log.ErrorContext(ctx, "relay - send - encode failed", logging.Event(ev.Name()), logging.Err(err))
		return
	}
	r.reg.SendTo(ctx, connID, data)
}

func (r *Relay) sendError(ctx context.Context, connID string, err error) {
	r.send(ctx, connID, domain.ErrorEvent{Code: ErrorCode(err), Message: err.Error()})
}

func (r *Relay) broadcastPresence(ctx context.Context) {
	data, err := domain.EncodeFrame(domain.OnlineUsers(r.reg.Presence().Snapshot()))
	if err != nil {
		r.log.ErrorContext(ctx, "relay - broadcast presence - encode failed", logging.Err(err))
		return
	}
	r.reg.BroadcastAll(ctx, data)
}

// record publishes to the journal off the loop; failures are only logged.
func (r *Relay) record(ctx context.Context, rec domain.CallRecord) {
	if r.journal == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := r.journal.Record(ctx, rec); err != nil {
			r.log.ErrorContext(ctx, "relay - record - publish call record failed", logging.Room(rec.RoomID), slog.String("kind", string(rec.Kind)), logging.Err(err))
		}
	}()
}

// PushToUser delivers ev to the user's current connection, if online.
func (r *Relay) PushToUser(ctx context.Context, userID string, ev domain.Outbound) error {
	data, err := domain.EncodeFrame(ev)
	if err != nil {
		return err
	}
	return r.submit(ctx, func(loop context.Context) {
		r.reg.SendToUser(linked(loop, ctx), userID, data)
	})
}

// BroadcastRoom delivers ev to every connection joined to roomID.
func (r *Relay) BroadcastRoom(ctx context.Context, roomID string, ev domain.Outbound) error {
	data, err := domain.EncodeFrame(ev)
	if err != nil {
		return err
	}
	return r.submit(ctx, func(loop context.Context) {
		r.reg.Broadcast(linked(loop, ctx), roomID, data, "")
	})
}

func (r *Relay) OnlineUsers(ctx context.Context) ([]string, error) {
	return query(ctx, r, func(context.Context) []string {
		return r.reg.Presence().Snapshot()
	})
}

func (r *Relay) IsOnline(ctx context.Context, userID string) (bool, error) {
	return query(ctx, r, func(context.Context) bool {
		_, ok := r.reg.Presence().Resolve(userID)
		return ok
	})
}

// CallState reports the broker state of a call room.
func (r *Relay) CallState(ctx context.Context, roomID string) (CallState, error) {
	return query(ctx, r, func(context.Context) CallState {
		return r.calls.State(roomID)
	})
}

// RoomMembers returns the connections joined to roomID.
func (r *Relay) RoomMembers(ctx context.Context, roomID string) ([]string, error) {
	return query(ctx, r, func(context.Context) []string {
		return r.reg.Rooms().Members(roomID)
	})
}

// ErrorCode maps a relay or decode error to the code sent in error frames.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrCallFull):
		return domain.CodeCallFull
	case errors.Is(err, domain.ErrCallEnded):
		return domain.CodeCallEnded
	case errors.Is(err, domain.ErrMalformedEvent), errors.Is(err, domain.ErrUnknownEvent):
		return domain.CodeBadFrame
	default:
		return domain.CodeUnavailable
	}
}

var (
	_ contracts.Relay    = (*Relay)(nil)
	_ contracts.Notifier = (*Relay)(nil)
)
