package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// AuthService issues tokens for accounts. Identity is a thin collaborator
// here: the core consumes a resolved actor per request.
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenManager
	cost   int
}

// NewAuthService constructs the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository) *AuthService {
	return &AuthService{
		users:  users,
		tokens: auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		cost:   cfg.BcryptCost,
	}
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// Register creates an enabled requester account.
func (s *AuthService) Register(ctx context.Context, username, name, password string) (*domain.User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	name = strings.TrimSpace(name)
	if username == "" || name == "" {
		return nil, apperrors.NewValidationError("username and name required", nil)
	}
	if len(password) < 8 {
		return nil, apperrors.NewValidationError("password must be at least 8 characters", nil)
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, apperrors.NewConflict("username already taken", map[string]any{"username": username})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.cost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	user := &domain.User{
		Username:     username,
		Name:         name,
		PasswordHash: hash,
		Enabled:      true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// Login verifies credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, time.Time, *domain.User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", time.Time{}, nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return "", time.Time{}, nil, apperrors.MapError(err)
	}
	if !user.Enabled {
		return "", time.Time{}, nil, apperrors.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return "", time.Time{}, nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Roles)
	if err != nil {
		return "", time.Time{}, nil, apperrors.MapError(err)
	}
	return token, expiresAt, user, nil
}
