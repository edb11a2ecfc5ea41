package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/cache"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
)

func TestGetByIDWithoutRedisDelegatesToRepository(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTicketTypeRepository()
	c := cache.NewTicketTypeCache(nil, repo, time.Minute, zap.NewNop())

	ticketType := &domain.TicketType{Name: "incident", Active: true, SLAMinutes: 240}
	require.NoError(t, repo.Create(ctx, ticketType))

	got, err := c.GetByID(ctx, ticketType.ID)
	require.NoError(t, err)
	require.Equal(t, "incident", got.Name)

	_, err = c.GetByID(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInvalidateWithoutRedisIsNoOp(t *testing.T) {
	ctx := context.Background()
	c := cache.NewTicketTypeCache(nil, memory.NewTicketTypeRepository(), time.Minute, zap.NewNop())

	c.Invalidate(ctx, "anything")
	c.InvalidateAll(ctx)
}
