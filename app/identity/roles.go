package identity

import (
	"context"
	"errors"
	"time"

	"github.com/shashiranjanraj/shop/app/models"
	"github.com/shashiranjanraj/shop/pkg/cache"
	"github.com/shashiranjanraj/shop/pkg/logger"
	"github.com/shashiranjanraj/shop/pkg/metrics"
)

const roleKeyPrefix = "identity:roles:"

// roleCache is a read-through cache of role grants per login name. Every
// write path in Adapter invalidates the affected key; the TTL only bounds
// staleness from writes made by other processes.
type roleCache struct {
	store Store
	cache cache.Store
	ttl   time.Duration
}

func roleKey(loginName string) string { return roleKeyPrefix + loginName }

func (c *roleCache) get(ctx context.Context, loginName string) ([]models.Role, error) {
	var roles []models.Role
	err := c.cache.Get(ctx, roleKey(loginName), &roles)
	if err == nil {
		metrics.CacheHits.WithLabelValues(c.cache.Driver()).Inc()
		return roles, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		logger.WithCtx(ctx).Warn("identity: role cache read failed", "login_name", loginName, "error", err)
	}
	metrics.CacheMisses.WithLabelValues(c.cache.Driver()).Inc()

	roles, err = c.store.Roles(ctx, loginName)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []models.Role{}
	}
	if err := c.cache.Set(ctx, roleKey(loginName), roles, c.ttl); err != nil {
		logger.WithCtx(ctx).Warn("identity: role cache write failed", "login_name", loginName, "error", err)
	}
	return roles, nil
}

func (c *roleCache) invalidate(ctx context.Context, loginName string) {
	if err := c.cache.Del(ctx, roleKey(loginName)); err != nil {
		logger.WithCtx(ctx).Warn("identity: role cache invalidation failed", "login_name", loginName, "error", err)
	}
}
