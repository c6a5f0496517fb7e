package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"

	"parley/internal/core/domain"
	"parley/pkg/logging"
)

const callHistoryLimit = 50

// CallRoom is what a client needs to start a call: a fresh room id to join
// and the ICE servers for its peer connection.
type CallRoom struct {
	RoomID     string             `json:"roomId"`
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

type CallService struct {
	repo    domain.CallRepository
	servers []webrtc.ICEServer
	log     *slog.Logger
}

// NewCallService groups STUN urls into one server and TURN urls into another
// that carries the credentials. Urls are parsed the way pion parses them when
// building a peer connection, so a bad entry fails here instead of at dial
// time.
func NewCallService(
	log *slog.Logger,
	repo domain.CallRepository,
	urls []string,
	username, credential string,
) (*CallService, error) {
	var stunURLs, turnURLs []string
	for _, raw := range urls {
		uri, err := stun.ParseURI(raw)
		if err != nil {
			return nil, fmt.Errorf("ice server %q: %w", raw, err)
		}
		switch uri.Scheme {
		case stun.SchemeTypeTURN, stun.SchemeTypeTURNS:
			turnURLs = append(turnURLs, raw)
		default:
			stunURLs = append(stunURLs, raw)
		}
	}
	servers := []webrtc.ICEServer{}
	if len(stunURLs) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: stunURLs})
	}
	if len(turnURLs) > 0 {
		if username == "" || credential == "" {
			return nil, fmt.Errorf("ice server %v: turn requires a username and credential", turnURLs)
		}
		servers = append(servers, webrtc.ICEServer{
			URLs:       turnURLs,
			Username:   username,
			Credential: credential,
		})
	}
	return &CallService{log: log, repo: repo, servers: servers}, nil
}

func (s *CallService) NewCall(ctx context.Context, userID string) CallRoom {
	room := CallRoom{RoomID: uuid.NewString(), ICEServers: s.ICEServers()}
	s.log.InfoContext(ctx, "calls - new call - room allocated", logging.Room(room.RoomID), logging.User(userID))
	return room
}

func (s *CallService) ICEServers() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, len(s.servers))
	copy(out, s.servers)
	return out
}

// History lists the most recent calls userID took part in.
func (s *CallService) History(ctx context.Context, userID string) ([]domain.CallSession, error) {
	ctx, span := tracer.Start(ctx, "CallService.History")
	defer span.End()
	sessions, err := s.repo.ListCallsForUser(ctx, userID, callHistoryLimit)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "calls - history - query failed", logging.User(userID), logging.Err(err))
		return nil, err
	}
	return sessions, nil
}
