package alerts

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CooldownCache is a Redis fast path in front of the database cooldown
// lock. Only positive hits short-circuit; a miss (or any Redis error)
// falls through to the authoritative locked check, so the cache can be
// stale or absent without breaking the Alert uniqueness invariant.
type CooldownCache struct {
	client *redis.Client
}

func NewCooldownCache(client *redis.Client) *CooldownCache {
	return &CooldownCache{client: client}
}

func cooldownKey(ruleID uuid.UUID, dedupKey string) string {
	return fmt.Sprintf("alert_cooldown:%s:%s", ruleID, dedupKey)
}

func (c *CooldownCache) Hit(ctx context.Context, ruleID uuid.UUID, dedupKey string) bool {
	if c == nil || c.client == nil {
		return false
	}
	n, err := c.client.Exists(ctx, cooldownKey(ruleID, dedupKey)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("CooldownCache: exists failed: %v", err)
		}
		return false
	}
	return n > 0
}

// Mark records a firing after the alert transaction commits.
func (c *CooldownCache) Mark(ctx context.Context, ruleID uuid.UUID, dedupKey string, ttl time.Duration) {
	if c == nil || c.client == nil || ttl <= 0 {
		return
	}
	if err := c.client.Set(ctx, cooldownKey(ruleID, dedupKey), 1, ttl).Err(); err != nil {
		log.Printf("CooldownCache: set failed: %v", err)
	}
}
