package contracts

import (
	"context"

	"parley/internal/core/domain"
)

// Client is the minimal view the relay needs of one live connection.
type Client interface {
	// ID is the server assigned connection identifier.
	ID() string
	// UserID is the authenticated owner of the connection.
	UserID() string
	// Send queues an encoded frame without blocking.
	Send(ctx context.Context, data []byte) error
	Close()
}

// Relay is the realtime event relay as seen by the connection manager.
type Relay interface {
	// Connect registers presence for c and broadcasts the online snapshot.
	Connect(ctx context.Context, c Client) error
	// Disconnect removes c from presence and every room it joined.
	Disconnect(ctx context.Context, c Client) error
	// Handle processes one validated inbound event from c.
	Handle(ctx context.Context, c Client, in domain.Inbound) error
}

// Notifier pushes server originated events to live connections. Delivery to
// users that are not connected is silently skipped.
type Notifier interface {
	PushToUser(ctx context.Context, userID string, ev domain.Outbound) error
	BroadcastRoom(ctx context.Context, roomID string, ev domain.Outbound) error
	OnlineUsers(ctx context.Context) ([]string, error)
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// RoomResolver classifies a room identifier sent with join-room.
type RoomResolver interface {
	ResolveRoom(ctx context.Context, roomID string) (domain.RoomKind, error)
}
