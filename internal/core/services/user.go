package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	passwordvalidator "github.com/wagslane/go-password-validator"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"parley/internal/core/domain"
	"parley/pkg/logging"
)

const minPasswordLen = 6

type UserService struct {
	log        *slog.Logger
	repo       domain.UserRepository
	minEntropy float64
}

// NewUserService builds the account service. A positive minEntropy adds an
// entropy check to signup on top of the length rule.
func NewUserService(log *slog.Logger, repo domain.UserRepository, minEntropy float64) *UserService {
	return &UserService{
		log:        log,
		repo:       repo,
		minEntropy: minEntropy,
	}
}

// Signup registers a new account with a bcrypt password hash.
func (s *UserService) Signup(ctx context.Context, fullName, email, password string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "UserService.Signup")
	defer span.End()
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: all fields are required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLen)
	}
	if s.minEntropy > 0 {
		if err := passwordvalidator.Validate(password, s.minEntropy); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		span.RecordError(err)
		if !errors.Is(err, domain.ErrEmailTaken) {
			span.SetStatus(codes.Error, "create user failed")
			s.log.ErrorContext(ctx, "user - signup - create user failed", logging.Err(err))
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("user_id", u.ID))
	s.log.InfoContext(ctx, "user - signup - user created", logging.User(u.ID))
	return u, nil
}

// Login checks the credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "UserService.Login")
	defer span.End()
	u, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		span.RecordError(err)
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.InfoContext(ctx, "user - login - wrong password", logging.User(u.ID))
		return nil, domain.ErrInvalidCredentials
	}
	span.SetAttributes(attribute.String("user_id", u.ID))
	return u, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// ListUsers returns everyone but excludeID.
func (s *UserService) ListUsers(ctx context.Context, excludeID string) ([]domain.User, error) {
	ctx, span := tracer.Start(ctx, "UserService.ListUsers", trace.WithAttributes(
		attribute.String("user_id", excludeID),
	))
	defer span.End()
	users, err := s.repo.ListUsers(ctx, excludeID)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "user - list users - query failed", logging.Err(err))
		return nil, err
	}
	return users, nil
}

// UpdateProfilePic stores pic as given; uploading media is not done here.
func (s *UserService) UpdateProfilePic(ctx context.Context, userID, pic string) (*domain.User, error) {
	if strings.TrimSpace(pic) == "" {
		return nil, fmt.Errorf("%w: profile pic is required", domain.ErrInvalidInput)
	}
	u, err := s.repo.UpdateProfilePic(ctx, userID, pic)
	if err != nil {
		s.log.ErrorContext(ctx, "user - update profile - update failed", logging.User(userID), logging.Err(err))
		return nil, err
	}
	return u, nil
}
