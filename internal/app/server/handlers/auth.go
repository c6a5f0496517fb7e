package handlers

import (
	"context"
	"net/http"
	"time"

	"parley/internal/core/domain"
	"parley/pkg/logging"
	"parley/pkg/middleware"
)

type UserService interface {
	Signup(ctx context.Context, fullName, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListUsers(ctx context.Context, excludeID string) ([]domain.User, error)
	UpdateProfilePic(ctx context.Context, userID, pic string) (*domain.User, error)
}

type TokenIssuer interface {
	GenerateToken(userID string) (string, error)
	TTL() time.Duration
}

type AuthHandler struct {
	users  UserService
	tokens TokenIssuer
	secure bool
}

func NewAuthHandler(users UserService, tokens TokenIssuer, secureCookies bool) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, secure: secureCookies}
}

type authResponse struct {
	domain.User
	Token string `json:"token"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	user, err := h.users.Signup(r.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.issue(w, r, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	user, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.issue(w, r, http.StatusOK, user)
}

// issue signs a token for user, sets it as the session cookie and returns
// it in the body as well.
func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, status int, user *domain.User) {
	token, err := h.tokens.GenerateToken(user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
	logging.FromContext(r.Context()).InfoContext(r.Context(), "auth handler - issue - token issued", logging.User(user.ID))
	writeJSON(w, status, authResponse{User: *user, Token: token})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context(), "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		ProfilePic string `json:"profilePic"`
	}
	if !decode(w, r, &req) {
		return
	}
	user, err := h.users.UpdateProfilePic(r.Context(), userID, req.ProfilePic)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
