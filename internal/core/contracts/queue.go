package contracts

import (
	"context"

	"parley/internal/core/domain"
)

type MessageQueue interface {
	// Producer side
	PublishToStream(ctx context.Context, stream string, payload []byte) error
	// Consumer side
	// SubscribeToStream reads the stream through a consumer group until ctx is done
	SubscribeToStream(ctx context.Context, stream string, conGroup string, handler func(ctx context.Context, messageID string, data []byte) error) error
	// AcknowledgeMessage removes the entry from the group's pending list
	AcknowledgeMessage(ctx context.Context, stream, conGroup, mesgID string) error
	// Deletes Message from redis stream
	DeleteMessage(ctx context.Context, stream, mesgID string) error
}

// CallJournal receives call lifecycle records from the signaling broker.
type CallJournal interface {
	Record(ctx context.Context, rec domain.CallRecord) error
}
