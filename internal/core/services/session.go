package services

import (
	"context"
	"log/slog"
	"time"

	"parley/internal/core/contracts"
	"parley/internal/core/domain"
	"parley/pkg/logging"
)

// SessionService keeps the durable last-seen time of connected users. Live
// presence itself belongs to the relay.
type SessionService struct {
	store    contracts.PresenceStore
	notifier contracts.Notifier
	now      func() time.Time
	log      *slog.Logger
}

func NewSessionService(
	log *slog.Logger,
	store contracts.PresenceStore,
	notifier contracts.Notifier,
) *SessionService {
	return &SessionService{
		log:      log,
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *SessionService) StartSession(ctx context.Context, userID string) error {
	return s.touch(ctx, "start session", userID)
}

// SessionSync runs on every heartbeat tick.
func (s *SessionService) SessionSync(ctx context.Context, userID string) error {
	return s.touch(ctx, "session sync", userID)
}

func (s *SessionService) StopSession(ctx context.Context, userID string) error {
	return s.touch(ctx, "stop session", userID)
}

func (s *SessionService) touch(ctx context.Context, op, userID string) error {
	if err := s.store.Touch(ctx, userID, s.now()); err != nil {
		s.log.ErrorContext(ctx, "session - "+op+" - redis touch failed", logging.User(userID), logging.Err(err))
		return err
	}
	s.log.DebugContext(ctx, "session - "+op+" - last seen updated", logging.User(userID))
	return nil
}

// LastSeen combines live presence with the stored last-seen time.
func (s *SessionService) LastSeen(ctx context.Context, userID string) (*domain.LastSeen, error) {
	online, err := s.notifier.IsOnline(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := &domain.LastSeen{UserID: userID, Online: online}
	at, ok, err := s.store.LastSeen(ctx, userID)
	if err != nil {
		s.log.ErrorContext(ctx, "session - last seen - redis read failed", logging.User(userID), logging.Err(err))
		return nil, err
	}
	if ok {
		res.LastSeen = &at
	}
	return res, nil
}
