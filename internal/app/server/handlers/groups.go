package handlers

import (
	"context"
	"net/http"

	"parley/internal/core/domain"
)

type GroupService interface {
	Create(ctx context.Context, adminID, name string, userIDs []string) (*domain.Group, error)
	ListMine(ctx context.Context, userID string) ([]domain.Group, error)
	SendMessage(ctx context.Context, senderID, groupID string, content domain.MessageContent) (*domain.Message, error)
	Messages(ctx context.Context, userID, groupID string) ([]domain.Message, error)
	Leave(ctx context.Context, userID, groupID string) error
	AddUser(ctx context.Context, adminID, groupID, userID string) (*domain.Group, error)
	RemoveUser(ctx context.Context, adminID, groupID, userID string) (*domain.Group, error)
	Delete(ctx context.Context, adminID, groupID string) error
}

type GroupHandler struct {
	groups GroupService
}

func NewGroupHandler(groups GroupService) *GroupHandler {
	return &GroupHandler{groups: groups}
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Name    string   `json:"name"`
		UserIDs []string `json:"userIds"`
	}
	if !decode(w, r, &req) {
		return
	}
	g, err := h.groups.Create(r.Context(), userID, req.Name, req.UserIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	groups, err := h.groups.ListMine(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *GroupHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var content domain.MessageContent
	if !decode(w, r, &content) {
		return
	}
	msg, err := h.groups.SendMessage(r.Context(), userID, r.PathValue("groupId"), content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *GroupHandler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	msgs, err := h.groups.Messages(r.Context(), userID, r.PathValue("groupId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *GroupHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.groups.Leave(r.Context(), userID, r.PathValue("groupId")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Left group successfully")
}

func (h *GroupHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		GroupID   string `json:"groupId"`
		UserToAdd string `json:"userIdToAdd"`
	}
	if !decode(w, r, &req) {
		return
	}
	g, err := h.groups.AddUser(r.Context(), userID, req.GroupID, req.UserToAdd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GroupHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		GroupID      string `json:"groupId"`
		UserToRemove string `json:"userIdToRemove"`
	}
	if !decode(w, r, &req) {
		return
	}
	g, err := h.groups.RemoveUser(r.Context(), userID, req.GroupID, req.UserToRemove)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.groups.Delete(r.Context(), userID, r.PathValue("groupId")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Group deleted successfully")
}
