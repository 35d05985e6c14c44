package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/banking/compliance-engine/internal/config"
	"github.com/banking/compliance-engine/internal/domain"
)

const (
	ruleSetKeyPrefix  = "compliance:rules:"
	settingsKeyPrefix = "compliance:settings:"
)

// Cache is the read-through cache for per-organization rule sets and
// compliance settings. A cache miss or redis outage falls through to the
// source of truth; entries expire on TTL and are invalidated on writes.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCache(cfg config.RedisConfig, logger *zap.Logger) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
	return &Cache{client: client, ttl: cfg.DefaultTTL, logger: logger}
}

// NewCacheWithClient wires an existing client, for tests with miniredis.
func NewCacheWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// GetRuleSet returns the cached rule set, or (nil, false) on miss or error.
func (c *Cache) GetRuleSet(ctx context.Context, orgID uuid.UUID) ([]*domain.ComplianceRule, bool) {
	data, err := c.client.Get(ctx, ruleSetKeyPrefix+orgID.String()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("rule cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var rules []*domain.ComplianceRule
	if err := json.Unmarshal(data, &rules); err != nil {
		c.logger.Warn("rule cache entry corrupt, dropping", zap.Error(err))
		c.client.Del(ctx, ruleSetKeyPrefix+orgID.String())
		return nil, false
	}
	return rules, true
}

// PutRuleSet stores the rule set. Failures are logged, never surfaced.
func (c *Cache) PutRuleSet(ctx context.Context, orgID uuid.UUID, rules []*domain.ComplianceRule) {
	data, err := json.Marshal(rules)
	if err != nil {
		c.logger.Warn("failed to marshal rule set for cache", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, ruleSetKeyPrefix+orgID.String(), data, c.ttl).Err(); err != nil {
		c.logger.Warn("rule cache write failed", zap.Error(err))
	}
}

// InvalidateRuleSet drops the cached rule set after a rule write.
func (c *Cache) InvalidateRuleSet(ctx context.Context, orgID uuid.UUID) {
	if err := c.client.Del(ctx, ruleSetKeyPrefix+orgID.String()).Err(); err != nil {
		c.logger.Warn("rule cache invalidation failed", zap.Error(err))
	}
}

// GetSettings returns the cached organization settings, or (nil, false).
func (c *Cache) GetSettings(ctx context.Context, orgID uuid.UUID) (*domain.OrganizationComplianceSettings, bool) {
	data, err := c.client.Get(ctx, settingsKeyPrefix+orgID.String()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("settings cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var settings domain.OrganizationComplianceSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		c.logger.Warn("settings cache entry corrupt, dropping", zap.Error(err))
		c.client.Del(ctx, settingsKeyPrefix+orgID.String())
		return nil, false
	}
	return &settings, true
}

func (c *Cache) PutSettings(ctx context.Context, settings *domain.OrganizationComplianceSettings) {
	data, err := json.Marshal(settings)
	if err != nil {
		c.logger.Warn("failed to marshal settings for cache", zap.Error(err))
		return
	}
	key := settingsKeyPrefix + settings.OrganizationID.String()
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("settings cache write failed", zap.Error(err))
	}
}

func (c *Cache) InvalidateSettings(ctx context.Context, orgID uuid.UUID) {
	if err := c.client.Del(ctx, settingsKeyPrefix+orgID.String()).Err(); err != nil {
		c.logger.Warn("settings cache invalidation failed", zap.Error(err))
	}
}

// Ping verifies connectivity at startup.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}
