// Package cache provides an explicit read-through cache for ticket type
// reference data. Entries carry a documented TTL and are invalidated
// explicitly by the admin mutations that change them; there is no implicit
// method-level caching anywhere in the service.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

const ticketTypeKeyPrefix = "helpdesk:ticket_type:"

// TicketTypeCache caches ticket types in Redis in front of the repository.
// A nil or unreachable Redis client degrades to repository reads.
type TicketTypeCache struct {
	client *redis.Client
	repo   repository.TicketTypeRepository
	ttl    time.Duration
	logger *zap.Logger
}

// NewTicketTypeCache builds the cache.
func NewTicketTypeCache(client *redis.Client, repo repository.TicketTypeRepository, ttl time.Duration, logger *zap.Logger) *TicketTypeCache {
	return &TicketTypeCache{client: client, repo: repo, ttl: ttl, logger: logger}
}

// GetByID returns the ticket type, serving from Redis when possible and
// populating the cache on miss.
func (c *TicketTypeCache) GetByID(ctx context.Context, id string) (*domain.TicketType, error) {
	if c.client != nil {
		raw, err := c.client.Get(ctx, ticketTypeKeyPrefix+id).Bytes()
		if err == nil {
			var ticketType domain.TicketType
			if unmarshalErr := json.Unmarshal(raw, &ticketType); unmarshalErr == nil {
				return &ticketType, nil
			}
			// Corrupt entry: drop it and fall through to the repository.
			c.client.Del(ctx, ticketTypeKeyPrefix+id)
		} else if err != redis.Nil {
			c.logger.Debug("ticket type cache read failed", zap.String("id", id), zap.Error(err))
		}
	}

	ticketType, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, ticketType)
	return ticketType, nil
}

// Invalidate drops the cached entry for one ticket type. Called by every
// mutation that changes it.
func (c *TicketTypeCache) Invalidate(ctx context.Context, id string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, ticketTypeKeyPrefix+id).Err(); err != nil {
		c.logger.Debug("ticket type cache invalidate failed", zap.String("id", id), zap.Error(err))
	}
}

// InvalidateAll drops every cached ticket type.
func (c *TicketTypeCache) InvalidateAll(ctx context.Context) {
	if c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, ticketTypeKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Debug("ticket type cache scan failed", zap.Error(err))
	}
}

func (c *TicketTypeCache) store(ctx context.Context, ticketType *domain.TicketType) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(ticketType)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, ticketTypeKeyPrefix+ticketType.ID, raw, c.ttl).Err(); err != nil {
		c.logger.Debug("ticket type cache write failed", zap.String("id", ticketType.ID), zap.Error(err))
	}
}
