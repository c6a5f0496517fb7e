package handlers

import (
	"context"
	"net/http"

	"parley/internal/core/domain"
)

type MessageService interface {
	SendDirect(ctx context.Context, senderID, receiverID string, content domain.MessageContent) (*domain.Message, error)
	History(ctx context.Context, userID, otherID string) ([]domain.Message, error)
	Delete(ctx context.Context, userID, messageID string) (*domain.Message, error)
	Search(ctx context.Context, userID, otherID, query string) ([]domain.Message, error)
}

type MessageHandler struct {
	messages MessageService
	users    UserService
}

func NewMessageHandler(messages MessageService, users UserService) *MessageHandler {
	return &MessageHandler{messages: messages, users: users}
}

// Users lists chat partners: everyone but the caller.
func (h *MessageHandler) Users(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	users, err := h.users.ListUsers(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	msgs, err := h.messages.History(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var content domain.MessageContent
	if !decode(w, r, &content) {
		return
	}
	msg, err := h.messages.SendDirect(r.Context(), userID, r.PathValue("id"), content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	msg, err := h.messages.Delete(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	msgs, err := h.messages.Search(r.Context(), userID, r.PathValue("id"), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}
