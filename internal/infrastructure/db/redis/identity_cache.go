package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
	"github.com/pathfinder/identity-gateway/internal/core/ports"
	"github.com/pathfinder/identity-gateway/internal/pkg/metrics"
)

const defaultIdentityTTL = 30 * time.Second

// IdentityCache is a read-through cache in front of an IdentityLookup.
// Key format: identity:<user_id>. Only successful lookups are cached, so a
// deactivated or deleted account is visible again after at most one TTL.
type IdentityCache struct {
	client *redis.Client
	next   ports.IdentityLookup
	ttl    time.Duration
	log    zerolog.Logger
}

// NewIdentityCache wraps next. A non-positive ttl falls back to 30s.
func NewIdentityCache(client *redis.Client, next ports.IdentityLookup, ttl time.Duration, log zerolog.Logger) *IdentityCache {
	if ttl <= 0 {
		ttl = defaultIdentityTTL
	}
	return &IdentityCache{client: client, next: next, ttl: ttl, log: log}
}

// FindByID serves from Redis when possible. Redis failures degrade to the
// wrapped lookup instead of failing the caller.
func (c *IdentityCache) FindByID(ctx context.Context, id string) (*domain.User, error) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	switch {
	case err == nil:
		var user domain.User
		if err := json.Unmarshal(raw, &user); err == nil {
			metrics.IdentityCacheTotal.WithLabelValues("hit").Inc()
			return &user, nil
		}
		c.log.Warn().Str("user_id", id).Msg("discarding undecodable cache entry")
	case errors.Is(err, redis.Nil):
	default:
		metrics.IdentityCacheTotal.WithLabelValues("error").Inc()
		c.log.Warn().Err(err).Str("user_id", id).Msg("identity cache read failed")
	}

	metrics.IdentityCacheTotal.WithLabelValues("miss").Inc()
	user, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.store(ctx, user); err != nil {
		c.log.Warn().Err(err).Str("user_id", id).Msg("identity cache write failed")
	}
	return user, nil
}

func (c *IdentityCache) store(ctx context.Context, user *domain.User) error {
	raw, err := json.Marshal(user.Public())
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	return c.client.Set(ctx, c.key(user.ID), raw, c.ttl).Err()
}

func (c *IdentityCache) key(id string) string {
	return "identity:" + id
}
