// Package cache provides a small key/value cache with a Redis driver and an
// in-process memory driver. Values are stored JSON-encoded so both drivers
// behave the same way for callers.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/shashiranjanraj/shop/config"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is implemented by every cache driver.
type Store interface {
	// Get decodes the value stored under key into dest.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores value under key for ttl. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error
	// Driver names the backend ("redis" or "memory") for metrics labels.
	Driver() string
}

// Connect builds the store selected by CACHE_DRIVER. When Redis is selected
// but unreachable the memory driver is returned together with the dial error
// so the caller can log the degradation.
func Connect(ctx context.Context) (Store, error) {
	if config.CacheDriver() != "redis" {
		return NewMemory(), nil
	}
	store, err := NewRedis(ctx, config.RedisAddr(), config.RedisPassword())
	if err != nil {
		return NewMemory(), err
	}
	return store, nil
}
