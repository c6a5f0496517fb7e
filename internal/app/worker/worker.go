package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"parley/internal/core/contracts"
	"parley/internal/core/domain"
	"parley/pkg/logging"
)

var tracer = otel.Tracer("worker")

// CallWorker folds call journal entries into the call history table.
type CallWorker struct {
	log      *slog.Logger
	queue    contracts.MessageQueue
	calls    domain.CallRepository
	stream   string
	conGroup string
}

func NewCallWorker(
	log *slog.Logger,
	queue contracts.MessageQueue,
	calls domain.CallRepository,
	stream string,
	conGroup string,
) *CallWorker {
	return &CallWorker{
		log:      log,
		queue:    queue,
		calls:    calls,
		stream:   stream,
		conGroup: conGroup,
	}
}

var _ contracts.AsyncWorker = (*CallWorker)(nil)

// Run consumes the journal stream until ctx is done.
func (w *CallWorker) Run(ctx context.Context) error {
	w.log.InfoContext(ctx, "worker - run - subscribing", "stream", w.stream, "group", w.conGroup)
	return w.queue.SubscribeToStream(ctx, w.stream, w.conGroup, w.ProcessMessage)
}

// ProcessMessage stores one record, then acknowledges and deletes the
// entry. Undecodable entries are acknowledged and dropped; storage failures
// leave the entry pending for a later reclaim.
func (w *CallWorker) ProcessMessage(
	ctx context.Context,
	messageID string,
	raw []byte,
) error {
	ctx, span := tracer.Start(ctx, "CallWorker.ProcessMessage", trace.WithAttributes(
		attribute.String("message_id", messageID),
	))
	defer span.End()
	var rec domain.CallRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		span.RecordError(err)
		w.log.ErrorContext(ctx, "worker - process message - wrong payload", logging.Message(messageID), logging.Err(err))
		return w.finish(ctx, messageID)
	}
	span.SetAttributes(attribute.String("room_id", rec.RoomID), attribute.String("kind", string(rec.Kind)))
	if err := w.calls.SaveCallRecord(ctx, rec); err != nil {
		span.RecordError(err)
		w.log.ErrorContext(ctx, "worker - process message - save call record failed", logging.Message(messageID), logging.Room(rec.RoomID), logging.Err(err))
		return err
	}
	w.log.InfoContext(ctx, "worker - process message - save call record success", logging.Message(messageID), logging.Room(rec.RoomID))
	return w.finish(ctx, messageID)
}

func (w *CallWorker) finish(ctx context.Context, messageID string) error {
	// remove it from the Pending Entries List (PEL)
	if err := w.queue.AcknowledgeMessage(ctx, w.stream, w.conGroup, messageID); err != nil {
		w.log.ErrorContext(ctx, "worker - process message - acknowledge message failed", logging.Message(messageID), logging.Err(err))
		return err
	}
	// already acked; a failed delete only leaves the entry until trimming
	if err := w.queue.DeleteMessage(ctx, w.stream, messageID); err != nil {
		w.log.ErrorContext(ctx, "worker - process message - delete message failed", logging.Message(messageID), logging.Err(err))
	}
	return nil
}
