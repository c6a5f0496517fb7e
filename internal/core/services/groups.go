package services

import (
	"context"
	"errors"
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

var errNotInGroup = fmt.Errorf("%w: not a member of this group", domain.ErrForbidden)

type GroupService struct {
	groups    domain.GroupRepository
	messages  domain.MessageRepository
	users     domain.UserRepository
	notifier  contracts.Notifier
	txManager contracts.TxManager
	log       *slog.Logger
}

func NewGroupService(
	log *slog.Logger,
	groups domain.GroupRepository,
	messages domain.MessageRepository,
	users domain.UserRepository,
	notifier contracts.Notifier,
	txManager contracts.TxManager,
) *GroupService {
	return &GroupService{
		log:       log,
		groups:    groups,
		messages:  messages,
		users:     users,
		notifier:  notifier,
		txManager: txManager,
	}
}

// Create makes adminID the admin and a member of a new group.
func (s *GroupService) Create(ctx context.Context, adminID, name string, userIDs []string) (*domain.Group, error) {
	ctx, span := tracer.Start(ctx, "GroupService.Create", trace.WithAttributes(
		attribute.String("user_id", adminID),
	))
	defer span.End()
	name = strings.TrimSpace(name)
	if name == "" || len(userIDs) == 0 {
		return nil, fmt.Errorf("%w: group name and at least one user are required", domain.ErrInvalidInput)
	}
	members := []string{adminID}
	seen := map[string]bool{adminID: true}
	for _, id := range userIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}
	g := &domain.Group{Name: name, AdminID: adminID}
	var created *domain.Group
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		for _, id := range members[1:] {
			if _, err := s.users.GetUserByID(txCtx, id); err != nil {
				return err
			}
		}
		if err := s.groups.CreateGroup(txCtx, g, members); err != nil {
			return err
		}
		var err error
		created, err = s.groups.GetGroupByID(txCtx, g.ID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction failed")
		s.log.ErrorContext(ctx, "groups - create - transaction failed", logging.User(adminID), logging.Err(err))
		return nil, err
	}
	s.log.InfoContext(ctx, "groups - create - group created", logging.Group(created.ID), slog.Int("members", len(created.Users)))
	return created, nil
}

func (s *GroupService) ListMine(ctx context.Context, userID string) ([]domain.Group, error) {
	ctx, span := tracer.Start(ctx, "GroupService.ListMine")
	defer span.End()
	groups, err := s.groups.ListGroupsForUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "groups - list mine - query failed", logging.User(userID), logging.Err(err))
		return nil, err
	}
	return groups, nil
}

// SendMessage stores a group message from a member and broadcasts it to the
// group's room.
func (s *GroupService) SendMessage(
	ctx context.Context,
	senderID, groupID string,
	content domain.MessageContent,
) (*domain.Message, error) {
	ctx, span := tracer.Start(ctx, "GroupService.SendMessage", trace.WithAttributes(
		attribute.String("sender_id", senderID),
		attribute.String("group_id", groupID),
	))
	defer span.End()
	if content.Empty() {
		return nil, fmt.Errorf("%w: message content is required", domain.ErrInvalidInput)
	}
	g, err := s.groups.GetGroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(senderID) {
		return nil, errNotInGroup
	}
	msg := &domain.Message{
		SenderID: senderID,
		GroupID:  groupID,
		Text:     content.Text,
		Image:    content.Image,
		Audio:    content.Audio,
		File:     content.File,
		FileName: content.FileName,
	}
	for i := range g.Users {
		if g.Users[i].ID == senderID {
			sender := g.Users[i]
			msg.Sender = &sender
			break
		}
	}
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create message failed")
		s.log.ErrorContext(ctx, "groups - send message - create message failed", logging.Group(groupID), logging.Err(err))
		return nil, err
	}
	s.broadcast(ctx, groupID, domain.GroupMessage{Message: *msg})
	return msg, nil
}

// Messages returns the group's history, oldest first, to members only.
func (s *GroupService) Messages(ctx context.Context, userID, groupID string) ([]domain.Message, error) {
	ctx, span := tracer.Start(ctx, "GroupService.Messages")
	defer span.End()
	g, err := s.groups.GetGroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(userID) {
		return nil, errNotInGroup
	}
	return s.messages.ListGroup(ctx, groupID)
}

// Leave removes userID from the group. An admin may only leave as the last
// member, which deletes the group.
func (s *GroupService) Leave(ctx context.Context, userID, groupID string) error {
	ctx, span := tracer.Start(ctx, "GroupService.Leave", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("group_id", groupID),
	))
	defer span.End()
	g, err := s.groups.GetGroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	if !g.HasMember(userID) {
		return domain.ErrNotMember
	}
	if g.AdminID == userID {
		if len(g.Users) > 1 {
			return domain.ErrAdminMustTransfer
		}
		return s.delete(ctx, g)
	}
	if err := s.groups.RemoveMember(ctx, groupID, userID); err != nil {
		span.RecordError(err)
		return err
	}
	s.systemMessage(ctx, g, userID, fmt.Sprintf("%s has left the group.", nameOf(g, userID)))
	return nil
}

// AddUser lets the admin add a member.
func (s *GroupService) AddUser(ctx context.Context, adminID, groupID, userID string) (*domain.Group, error) {
	ctx, span := tracer.Start(ctx, "GroupService.AddUser")
	defer span.End()
	g, err := s.adminGroup(ctx, adminID, groupID)
	if err != nil {
		return nil, err
	}
	added, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.groups.AddMember(ctx, groupID, userID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.systemMessage(ctx, g, adminID, fmt.Sprintf("%s was added to the group.", added.FullName))
	return s.groups.GetGroupByID(ctx, groupID)
}

// RemoveUser lets the admin remove a member other than themselves.
func (s *GroupService) RemoveUser(ctx context.Context, adminID, groupID, userID string) (*domain.Group, error) {
	ctx, span := tracer.Start(ctx, "GroupService.RemoveUser")
	defer span.End()
	g, err := s.adminGroup(ctx, adminID, groupID)
	if err != nil {
		return nil, err
	}
	if userID == adminID {
		return nil, fmt.Errorf("%w: admin cannot remove themselves", domain.ErrInvalidInput)
	}
	if !g.HasMember(userID) {
		return nil, domain.ErrNotMember
	}
	if err := s.groups.RemoveMember(ctx, groupID, userID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.systemMessage(ctx, g, adminID, fmt.Sprintf("%s was removed from the group.", nameOf(g, userID)))
	return s.groups.GetGroupByID(ctx, groupID)
}

// Delete lets the admin remove the group and its messages.
func (s *GroupService) Delete(ctx context.Context, adminID, groupID string) error {
	ctx, span := tracer.Start(ctx, "GroupService.Delete")
	defer span.End()
	g, err := s.adminGroup(ctx, adminID, groupID)
	if err != nil {
		return err
	}
	return s.delete(ctx, g)
}

func (s *GroupService) delete(ctx context.Context, g *domain.Group) error {
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.messages.DeleteGroupMessages(txCtx, g.ID); err != nil {
			return err
		}
		return s.groups.DeleteGroup(txCtx, g.ID)
	})
	if err != nil {
		s.log.ErrorContext(ctx, "groups - delete - transaction failed", logging.Group(g.ID), logging.Err(err))
		return err
	}
	s.log.InfoContext(ctx, "groups - delete - group deleted", logging.Group(g.ID))
	s.broadcast(ctx, g.ID, domain.GroupDeleted{GroupID: g.ID})
	return nil
}

func (s *GroupService) adminGroup(ctx context.Context, adminID, groupID string) (*domain.Group, error) {
	g, err := s.groups.GetGroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.AdminID != adminID {
		return nil, domain.ErrNotGroupAdmin
	}
	return g, nil
}

// systemMessage records a membership change in the group's history. Failures
// are logged; the membership change itself already happened.
func (s *GroupService) systemMessage(ctx context.Context, g *domain.Group, actorID, text string) {
	msg := &domain.Message{SenderID: actorID, GroupID: g.ID, Text: text}
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		s.log.ErrorContext(ctx, "groups - system message - create message failed", logging.Group(g.ID), logging.Err(err))
		return
	}
	msg.Sender = memberOf(g, actorID)
	s.broadcast(ctx, g.ID, domain.GroupMessage{Message: *msg})
}

func (s *GroupService) broadcast(ctx context.Context, groupID string, ev domain.Outbound) {
	if err := s.notifier.BroadcastRoom(ctx, groupID, ev); err != nil && !errors.Is(err, context.Canceled) {
		s.log.WarnContext(ctx, "groups - broadcast - realtime push failed", logging.Group(groupID), logging.Event(ev.Name()), logging.Err(err))
	}
}

func memberOf(g *domain.Group, userID string) *domain.User {
	for _, u := range g.Users {
		if u.ID == userID {
			return &u
		}
	}
	return nil
}

func nameOf(g *domain.Group, userID string) string {
	if u := memberOf(g, userID); u != nil {
		return u.FullName
	}
	return "someone"
}
