package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"parley/internal/core/contracts"
	"parley/internal/core/domain"
	"parley/pkg/logging"
)

const searchLimit = 30

// MessageService persists direct messages and relays them to live
// connections. Realtime delivery never decides whether a send succeeded.
type MessageService struct {
	repo     domain.MessageRepository
	users    domain.UserRepository
	notifier contracts.Notifier
	log      *slog.Logger
}

func NewMessageService(
	log *slog.Logger,
	repo domain.MessageRepository,
	users domain.UserRepository,
	notifier contracts.Notifier,
) *MessageService {
	return &MessageService{
		log:      log,
		repo:     repo,
		users:    users,
		notifier: notifier,
	}
}

// SendDirect stores the message, then pushes newMessage to the receiver.
func (s *MessageService) SendDirect(
	ctx context.Context,
	senderID, receiverID string,
	content domain.MessageContent,
) (*domain.Message, error) {
	ctx, span := tracer.Start(ctx, "MessageService.SendDirect", trace.WithAttributes(
		attribute.String("sender_id", senderID),
		attribute.String("receiver_id", receiverID),
	))
	defer span.End()
	if content.Empty() {
		return nil, fmt.Errorf("%w: message content is required", domain.ErrInvalidInput)
	}
	if _, err := s.users.GetUserByID(ctx, receiverID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	msg := &domain.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       content.Text,
		Image:      content.Image,
		Audio:      content.Audio,
		File:       content.File,
		FileName:   content.FileName,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create message failed")
		s.log.ErrorContext(ctx, "messages - send direct - create message failed", logging.User(senderID), logging.Err(err))
		return nil, err
	}
	s.log.InfoContext(ctx, "messages - send direct - message stored", logging.Message(msg.ID), logging.User(senderID))
	if err := s.notifier.PushToUser(ctx, receiverID, domain.NewMessage{Message: *msg}); err != nil {
		s.log.WarnContext(ctx, "messages - send direct - realtime push failed", logging.Message(msg.ID), logging.Err(err))
	}
	return msg, nil
}

// History returns the conversation between userID and otherID, oldest first.
func (s *MessageService) History(ctx context.Context, userID, otherID string) ([]domain.Message, error) {
	ctx, span := tracer.Start(ctx, "MessageService.History", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("other_id", otherID),
	))
	defer span.End()
	msgs, err := s.repo.ListDirect(ctx, userID, otherID)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "messages - history - list failed", logging.User(userID), logging.Err(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("message_count", len(msgs)))
	return msgs, nil
}

// Delete soft deletes a message the caller sent and tells the other side.
func (s *MessageService) Delete(ctx context.Context, userID, messageID string) (*domain.Message, error) {
	ctx, span := tracer.Start(ctx, "MessageService.Delete", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("message_id", messageID),
	))
	defer span.End()
	msg, err := s.repo.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, domain.ErrForbidden
	}
	deleted, err := s.repo.SoftDelete(ctx, messageID)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "messages - delete - soft delete failed", logging.Message(messageID), logging.Err(err))
		return nil, err
	}
	if deleted.GroupID != "" {
		err = s.notifier.BroadcastRoom(ctx, deleted.GroupID, domain.GroupMessageDeleted{
			MessageID: deleted.ID,
			GroupID:   deleted.GroupID,
		})
	} else {
		err = s.notifier.PushToUser(ctx, deleted.ReceiverID, domain.PrivateMessageDeleted{MessageID: deleted.ID})
	}
	if err != nil {
		s.log.WarnContext(ctx, "messages - delete - realtime push failed", logging.Message(messageID), logging.Err(err))
	}
	return deleted, nil
}

// Search returns up to 30 matches in the conversation, newest first.
func (s *MessageService) Search(ctx context.Context, userID, otherID, query string) ([]domain.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", domain.ErrInvalidInput)
	}
	ctx, span := tracer.Start(ctx, "MessageService.Search")
	defer span.End()
	msgs, err := s.repo.SearchDirect(ctx, userID, otherID, query, searchLimit)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return msgs, nil
}
