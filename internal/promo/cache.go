package promo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache stores each tenant's active promotion list in Redis. Calculations
// stay correct with a cold or unavailable cache; it only saves the store read.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func activeKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("promo:active:%s", tenantID)
}

// GetActive unmarshals the cached promotion list into dst. It reports whether
// the key existed.
func (c *Cache) GetActive(ctx context.Context, tenantID uuid.UUID, dst *[]Promotion) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	data, err := c.client.Get(ctx, activeKey(tenantID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetActive serialises the promotion list and stores it with the configured TTL.
func (c *Cache) SetActive(ctx context.Context, tenantID uuid.UUID, promos []Promotion) error {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(promos)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, activeKey(tenantID), data, c.ttl).Err()
}

// Invalidate drops the tenant's cached promotion list after admin mutations.
func (c *Cache) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, activeKey(tenantID)).Err()
}
