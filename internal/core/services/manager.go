package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"parley/internal/core/contracts"
	"parley/internal/core/domain"
	"parley/pkg/logging"
)

type IManagerService interface {
	// HandleConnect registers the connection with the relay and records the
	// session start.
	HandleConnect(ctx context.Context, c contracts.Client) error
	// HandleDisconnect removes the connection and records last seen.
	HandleDisconnect(ctx context.Context, c contracts.Client) error
	// HandleHeartbeat refreshes last seen until ctx is done.
	HandleHeartbeat(ctx context.Context, userID string) error
	// HandleMessage decodes one frame and passes it to the relay.
	HandleMessage(ctx context.Context, c contracts.Client, raw []byte) error
}

var tracer = otel.Tracer("services")

// ManagerService sits between a websocket connection and the relay.
type ManagerService struct {
	relay     contracts.Relay
	rooms     contracts.RoomResolver
	session   *SessionService
	heartbeat time.Duration
	log       *slog.Logger
}

func NewManagerService(
	log *slog.Logger,
	relay contracts.Relay,
	rooms contracts.RoomResolver,
	session *SessionService,
	heartbeat time.Duration,
) *ManagerService {
	return &ManagerService{
		log:       log,
		relay:     relay,
		rooms:     rooms,
		session:   session,
		heartbeat: heartbeat,
	}
}

func (m *ManagerService) HandleConnect(ctx context.Context, c contracts.Client) error {
	ctx, span := tracer.Start(ctx, "ManagerService.HandleConnect", trace.WithAttributes(
		attribute.String("user_id", c.UserID()),
		attribute.String("conn_id", c.ID()),
	))
	defer span.End()
	if err := m.relay.Connect(ctx, c); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "relay connect failed")
		m.log.ErrorContext(ctx, "manager - handle connect - relay connect failed", logging.User(c.UserID()), logging.Err(err))
		return err
	}
	// last seen is best effort; the connection is already live
	_ = m.session.StartSession(ctx, c.UserID())
	span.SetStatus(codes.Ok, "connected")
	return nil
}

func (m *ManagerService) HandleHeartbeat(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("invalid heartbeat parameters")
	}
	if m.heartbeat <= 0 {
		return nil
	}
	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Debug("manager - handle heartbeat - stopped", logging.User(userID))
			return nil
		case <-ticker.C:
			tctx, span := tracer.Start(ctx, "Heartbeat.SessionSync")
			if err := m.session.SessionSync(tctx, userID); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "session sync failed")
			}
			span.End()
		}
	}
}

func (m *ManagerService) HandleDisconnect(ctx context.Context, c contracts.Client) error {
	ctx, span := tracer.Start(ctx, "ManagerService.HandleDisconnect", trace.WithAttributes(
		attribute.String("user_id", c.UserID()),
		attribute.String("conn_id", c.ID()),
	))
	defer span.End()
	err := m.relay.Disconnect(ctx, c)
	if err != nil {
		span.RecordError(err)
		m.log.ErrorContext(ctx, "manager - handle disconnect - relay disconnect failed", logging.Conn(c.ID()), logging.Err(err))
	}
	_ = m.session.StopSession(ctx, c.UserID())
	return err
}

// HandleMessage rejects undecodable frames with an error event sent straight
// to the connection; such frames never reach the relay.
func (m *ManagerService) HandleMessage(ctx context.Context, c contracts.Client, raw []byte) error {
	ctx, span := tracer.Start(ctx, "ManagerService.HandleMessage", trace.WithAttributes(
		attribute.String("conn_id", c.ID()),
		attribute.Int("payload_size", len(raw)),
	))
	defer span.End()
	in, err := domain.DecodeFrame(raw)
	if err != nil {
		span.RecordError(err)
		m.log.InfoContext(ctx, "manager - handle message - bad frame", logging.Conn(c.ID()), logging.Err(err))
		if frame, encErr := domain.EncodeFrame(domain.ErrorEvent{Code: domain.CodeBadFrame, Message: err.Error()}); encErr == nil {
			_ = c.Send(ctx, frame)
		}
		return err
	}
	span.SetAttributes(attribute.String("event", in.Name()))
	if join, ok := in.(domain.JoinRoom); ok {
		join.Kind = m.resolve(ctx, join.RoomID)
		in = join
	}
	if err := m.relay.Handle(ctx, c, in); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "relay handle failed")
		return err
	}
	return nil
}

func (m *ManagerService) resolve(ctx context.Context, roomID string) domain.RoomKind {
	kind, err := m.rooms.ResolveRoom(ctx, roomID)
	if err != nil {
		// unresolved rooms join as plain subscriptions
		m.log.WarnContext(ctx, "manager - resolve room - lookup failed", logging.Room(roomID), logging.Err(err))
		return domain.RoomGroup
	}
	return kind
}
