package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

func newAuthService() (*service.AuthService, *memory.UserRepository) {
	users := memory.NewUserRepository()
	cfg := config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4}
	return service.NewAuthService(cfg, users), users
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "Rita", "Rita R", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, "rita", user.Username)
	require.True(t, user.Enabled)
	require.Empty(t, user.Roles)
	require.NotEqual(t, "correct horse battery", user.PasswordHash)

	token, expiresAt, loggedIn, err := svc.Login(ctx, "rita", "correct horse battery")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())
	require.Equal(t, user.ID, loggedIn.ID)

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "name", "longenough")
	require.Error(t, err)

	_, err = svc.Register(ctx, "user", "name", "short")
	require.Error(t, err)
}

func TestRegisterDuplicateUsernameConflicts(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "rita", "Rita", "longenough")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "RITA", "Other Rita", "longenough")
	require.True(t, apperrors.IsConflict(err))
}

func TestLoginRejectsBadCredentialsAndDisabledAccounts(t *testing.T) {
	svc, users := newAuthService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "rita", "Rita", "longenough")
	require.NoError(t, err)

	_, _, _, err = svc.Login(ctx, "rita", "wrongpassword")
	require.Error(t, err)

	_, _, _, err = svc.Login(ctx, "ghost", "whatever")
	require.Error(t, err)

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	stored.Enabled = false
	require.NoError(t, users.Create(ctx, stored)) // overwrite in place

	_, _, _, err = svc.Login(ctx, "rita", "longenough")
	require.Error(t, err)
}
