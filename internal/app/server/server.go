package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"parley/internal/app/server/handlers"
	"parley/internal/config"
	"parley/pkg/middleware"
)

// Handlers groups everything the router serves.
type Handlers struct {
	Auth     *handlers.AuthHandler
	Messages *handlers.MessageHandler
	Groups   *handlers.GroupHandler
	Presence *handlers.PresenceHandler
	Calls    *handlers.CallHandler
	WS       *handlers.WSHandler
}

type Server struct {
	mux    *http.ServeMux
	cfg    config.Config
	h      Handlers
	tokens middleware.TokenValidator
	log    *slog.Logger
}

func NewServer(
	log *slog.Logger,
	cfg config.Config,
	tokens middleware.TokenValidator,
	h Handlers,
) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		cfg:    cfg,
		h:      h,
		tokens: tokens,
		log:    log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	auth := middleware.AuthMiddleware(s.tokens)
	protected := func(pattern string, fn http.HandlerFunc) {
		s.mux.Handle(pattern, auth(fn))
	}

	// Public Routes
	s.mux.HandleFunc("POST /api/auth/signup", s.h.Auth.Signup)
	s.mux.HandleFunc("POST /api/auth/login", s.h.Auth.Login)
	s.mux.HandleFunc("POST /api/auth/logout", s.h.Auth.Logout)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	protected("GET /api/auth/check", s.h.Auth.Check)
	protected("GET /api/auth/users", s.h.Auth.Users)
	protected("PUT /api/auth/update-profile", s.h.Auth.UpdateProfile)

	protected("GET /api/messages/users", s.h.Messages.Users)
	protected("GET /api/messages/search/{id}", s.h.Messages.Search)
	protected("GET /api/messages/{id}", s.h.Messages.History)
	protected("POST /api/messages/send/{id}", s.h.Messages.Send)
	protected("DELETE /api/messages/{id}", s.h.Messages.Delete)

	protected("POST /api/groups", s.h.Groups.Create)
	protected("GET /api/groups", s.h.Groups.List)
	protected("PATCH /api/groups/add-user", s.h.Groups.AddUser)
	protected("PATCH /api/groups/remove-user", s.h.Groups.RemoveUser)
	protected("POST /api/groups/{groupId}/messages", s.h.Groups.SendMessage)
	protected("GET /api/groups/{groupId}/messages", s.h.Groups.Messages)
	protected("PATCH /api/groups/{groupId}/leave", s.h.Groups.Leave)
	protected("DELETE /api/groups/{groupId}", s.h.Groups.Delete)

	protected("GET /api/users/online", s.h.Presence.Online)
	protected("GET /api/users/{id}/last-seen", s.h.Presence.LastSeen)

	protected("POST /api/calls", s.h.Calls.Create)
	protected("GET /api/calls", s.h.Calls.History)
	protected("GET /api/calls/ice-servers", s.h.Calls.ICEServers)

	protected("GET /ws", s.h.WS.Handler)
}

// Handler is the router wrapped in the tracing, logging and CORS layers.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = middleware.CORS(s.cfg.HTTP.AllowedOrigins)(h)
	h = middleware.RequestLogger(s.log)(h)
	return middleware.TracerMiddleware(s.cfg.Service.Name)(h)
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Service.Add,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server - start - listening", "address", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	s.log.Info("server - shutdown - draining")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
