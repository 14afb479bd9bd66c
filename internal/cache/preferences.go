// Package cache keeps hot per-user documents close to the request path.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/voice-planner/internal/database"
	"github.com/benvon/voice-planner/internal/models"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultTTL is how long a preference document is served from cache
	DefaultTTL = 5 * time.Minute
	// MaxLocalTTL caps the in-process level. Other replicas do not see its
	// invalidations, so a write elsewhere is picked up within this window.
	MaxLocalTTL = 30 * time.Second
	// DefaultSize bounds the in-process cache
	DefaultSize = 1024

	keyPrefix = "prefs:"
)

// PreferencesCache serves user preferences from an in-process LRU, then
// Redis when configured, then the database. Users without stored
// preferences get the defaults. The in-process level holds entries for at
// most MaxLocalTTL.
type PreferencesCache struct {
	store    database.PreferencesRepositoryInterface
	local    *expirable.LRU[uuid.UUID, models.Preferences]
	redis    redis.Cmdable
	ttl      time.Duration
	localTTL time.Duration
	logger   *zap.Logger
}

// NewPreferencesCache creates a preferences cache. redisClient may be nil.
func NewPreferencesCache(store database.PreferencesRepositoryInterface, redisClient redis.Cmdable, ttl time.Duration, log *zap.Logger) *PreferencesCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	localTTL := min(ttl, MaxLocalTTL)
	return &PreferencesCache{
		store:    store,
		local:    expirable.NewLRU[uuid.UUID, models.Preferences](DefaultSize, nil, localTTL),
		redis:    redisClient,
		ttl:      ttl,
		localTTL: localTTL,
		logger:   log,
	}
}

func redisKey(userID uuid.UUID) string {
	return keyPrefix + userID.String()
}

// Get returns the normalized preferences of a user
func (c *PreferencesCache) Get(ctx context.Context, userID uuid.UUID) (models.Preferences, error) {
	if p, ok := c.local.Get(userID); ok {
		return p, nil
	}

	if p, ok := c.fromRedis(ctx, userID); ok {
		c.local.Add(userID, p)
		return p, nil
	}

	stored, err := c.store.GetByUserID(ctx, userID)
	var p models.Preferences
	switch {
	case errors.Is(err, database.ErrNotFound):
		p = models.DefaultPreferences(userID)
	case err != nil:
		return models.Preferences{}, fmt.Errorf("failed to load preferences: %w", err)
	default:
		p = stored.Normalize()
	}

	c.local.Add(userID, p)
	c.toRedis(ctx, p)
	return p, nil
}

// Put stores preferences and refreshes both cache levels
func (c *PreferencesCache) Put(ctx context.Context, p models.Preferences) (models.Preferences, error) {
	p = p.Normalize()
	if err := c.store.Upsert(ctx, &p); err != nil {
		return models.Preferences{}, err
	}
	c.local.Add(p.UserID, p)
	c.toRedis(ctx, p)
	return p, nil
}

// Invalidate drops a user's preferences from both cache levels
func (c *PreferencesCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	c.local.Remove(userID)
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, redisKey(userID)).Err(); err != nil {
		c.logger.Warn("preferences_cache_invalidate_failed",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
}

func (c *PreferencesCache) fromRedis(ctx context.Context, userID uuid.UUID) (models.Preferences, bool) {
	if c.redis == nil {
		return models.Preferences{}, false
	}
	raw, err := c.redis.Get(ctx, redisKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Preferences{}, false
	}
	if err != nil {
		c.logger.Warn("preferences_cache_read_failed",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return models.Preferences{}, false
	}

	p := models.DefaultPreferences(userID)
	if err := json.Unmarshal(raw, &p); err != nil {
		c.logger.Warn("preferences_cache_decode_failed",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return models.Preferences{}, false
	}
	p.UserID = userID
	return p.Normalize(), true
}

func (c *PreferencesCache) toRedis(ctx context.Context, p models.Preferences) {
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, redisKey(p.UserID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("preferences_cache_write_failed",
			zap.String("user_id", p.UserID.String()),
			zap.Error(err),
		)
	}
}
