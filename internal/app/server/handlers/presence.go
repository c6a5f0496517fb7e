package handlers

import (
	"context"
	"net/http"

	"parley/internal/core/domain"
)

type OnlineLister interface {
	OnlineUsers(ctx context.Context) ([]string, error)
}

type LastSeenReader interface {
	LastSeen(ctx context.Context, userID string) (*domain.LastSeen, error)
}

type PresenceHandler struct {
	online   OnlineLister
	sessions LastSeenReader
}

func NewPresenceHandler(online OnlineLister, sessions LastSeenReader) *PresenceHandler {
	return &PresenceHandler{online: online, sessions: sessions}
}

func (h *PresenceHandler) Online(w http.ResponseWriter, r *http.Request) {
	users, err := h.online.OnlineUsers(r.Context())
	if err != nil {
		writeMessage(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *PresenceHandler) LastSeen(w http.ResponseWriter, r *http.Request) {
	seen, err := h.sessions.LastSeen(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, seen)
}
