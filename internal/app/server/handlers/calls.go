package handlers

import (
	"context"
	"net/http"

	"github.com/pion/webrtc/v4"

	"parley/internal/core/domain"
	"parley/internal/core/services"
)

type CallService interface {
	NewCall(ctx context.Context, userID string) services.CallRoom
	ICEServers() []webrtc.ICEServer
	History(ctx context.Context, userID string) ([]domain.CallSession, error)
}

type CallHandler struct {
	calls CallService
}

func NewCallHandler(calls CallService) *CallHandler {
	return &CallHandler{calls: calls}
}

func (h *CallHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, h.calls.NewCall(r.Context(), userID))
}

func (h *CallHandler) ICEServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.calls.ICEServers())
}

func (h *CallHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	calls, err := h.calls.History(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, calls)
}
