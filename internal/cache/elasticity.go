package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rewired-gh/pricepilot/internal/models"
)

// ElasticityCache keeps elasticity estimates per product and lookback
// window.
type ElasticityCache struct {
	store Store
	ttl   time.Duration
}

func NewElasticityCache(store Store, ttl time.Duration) *ElasticityCache {
	return &ElasticityCache{store: store, ttl: ttl}
}

func elasticityKey(productID string, days int) string {
	return fmt.Sprintf("elasticity:%s:%d", productID, days)
}

// Get returns the cached estimate, if any.
func (c *ElasticityCache) Get(ctx context.Context, productID string, days int) (*models.ElasticityEstimate, bool, error) {
	b, found, err := c.store.Get(ctx, elasticityKey(productID, days))
	if err != nil || !found {
		return nil, false, err
	}
	var est models.ElasticityEstimate
	if err := json.Unmarshal(b, &est); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached elasticity: %w", err)
	}
	return &est, true, nil
}

func (c *ElasticityCache) Set(ctx context.Context, productID string, days int, est models.ElasticityEstimate) error {
	b, err := json.Marshal(est)
	if err != nil {
		return fmt.Errorf("failed to encode elasticity: %w", err)
	}
	return c.store.Set(ctx, elasticityKey(productID, days), b, c.ttl)
}

// Invalidate drops the cached estimate, e.g. after new sales data arrives.
func (c *ElasticityCache) Invalidate(ctx context.Context, productID string, days int) error {
	return c.store.Delete(ctx, elasticityKey(productID, days))
}
