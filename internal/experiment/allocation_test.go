package experiment

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rewired-gh/pricepilot/internal/models"
)

func TestAllocate_KnownAssignments(t *testing.T) {
	tests := []struct {
		product, user string
		want          models.Group
	}{
		{"sku-1", "user-1", models.GroupVariant},
		{"sku-1", "user-2", models.GroupControl},
		{"sku-1", "user-3", models.GroupVariant},
		{"sku-2", "user-1", models.GroupVariant},
		{"42", "alice", models.GroupControl},
		{"42", "bob", models.GroupVariant},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Allocate(tt.product, tt.user), "%s/%s", tt.product, tt.user)
	}
}

func TestAllocate_StableAndBalanced(t *testing.T) {
	variants := 0
	for i := 0; i < 10000; i++ {
		user := fmt.Sprintf("user-%d", i)
		g := Allocate("sku-1", user)
		assert.Equal(t, g, Allocate("sku-1", user))
		if g == models.GroupVariant {
			variants++
		}
	}
	assert.InDelta(t, 5000, variants, 300)
}

func TestVariantPrice(t *testing.T) {
	assert.Equal(t, 35.99, VariantPrice(39.99, -0.1))
	assert.Equal(t, 44.99, VariantPrice(39.99, 0.125))
	assert.Equal(t, 39.99, VariantPrice(39.99, 0))
}

func TestArms(t *testing.T) {
	arms := Arms("sku-1", 20, -0.1)
	assert.Equal(t, []models.ExperimentArm{
		{ProductID: "sku-1", Group: models.GroupControl, TestPrice: 20},
		{ProductID: "sku-1", Group: models.GroupVariant, TestPrice: 18},
	}, arms)
}
