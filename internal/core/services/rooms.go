package services

import (
	"context"
	"errors"
	"log/slog"

	"parley/internal/core/domain"
)

// RoomService classifies join-room targets: a group id, a user id for
// direct chat, or anything else as a call room.
type RoomService struct {
	groups domain.GroupRepository
	users  domain.UserRepository
	log    *slog.Logger
}

func NewRoomService(log *slog.Logger, groups domain.GroupRepository, users domain.UserRepository) *RoomService {
	return &RoomService{log: log, groups: groups, users: users}
}

func (s *RoomService) ResolveRoom(ctx context.Context, roomID string) (domain.RoomKind, error) {
	_, err := s.groups.GetGroupByID(ctx, roomID)
	switch {
	case err == nil:
		return domain.RoomGroup, nil
	case !errors.Is(err, domain.ErrGroupNotFound):
		return "", err
	}
	_, err = s.users.GetUserByID(ctx, roomID)
	switch {
	case err == nil:
		return domain.RoomDirect, nil
	case errors.Is(err, domain.ErrUserNotFound):
		return domain.RoomCall, nil
	default:
		return "", err
	}
}
