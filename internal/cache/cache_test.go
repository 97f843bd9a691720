package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/pricepilot/internal/models"
)

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))

	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	now = now.Add(2 * time.Minute)
	_, ok, _ = s.Get(ctx, "a")
	assert.False(t, ok, "expired")
	_, ok, _ = s.Get(ctx, "b")
	assert.True(t, ok, "no ttl never expires")

	require.NoError(t, s.Delete(ctx, "b"))
	_, ok, _ = s.Get(ctx, "b")
	assert.False(t, ok)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf, 0))
	buf[0] = 'x'

	v, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(v))
}

func TestElasticityCache(t *testing.T) {
	ctx := context.Background()
	c := NewElasticityCache(NewMemoryStore(), time.Hour)

	_, ok, err := c.Get(ctx, "sku-1", 90)
	require.NoError(t, err)
	assert.False(t, ok)

	est := models.ElasticityEstimate{
		ProductID:      "sku-1",
		Elasticity:     -2.5,
		Confidence:     0.93,
		DataPoints:     42,
		Interpretation: models.HighlyElastic,
		Recommendation: &models.PriceRecommendation{Action: models.PriceDecrease, Amount: 4.5, Percentage: 11.25},
	}
	require.NoError(t, c.Set(ctx, "sku-1", 90, est))

	got, ok, err := c.Get(ctx, "sku-1", 90)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, est, *got)

	_, ok, _ = c.Get(ctx, "sku-1", 30)
	assert.False(t, ok, "lookback window is part of the key")

	require.NoError(t, c.Invalidate(ctx, "sku-1", 90))
	_, ok, _ = c.Get(ctx, "sku-1", 90)
	assert.False(t, ok)
}

func TestElasticityCache_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, elasticityKey("sku-1", 90), []byte("{not json"), 0))

	_, ok, err := NewElasticityCache(store, time.Hour).Get(ctx, "sku-1", 90)
	assert.Error(t, err)
	assert.False(t, ok)
}
