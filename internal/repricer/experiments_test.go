package repricer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/pricepilot/internal/models"
)

func TestExperimentLifecycle(t *testing.T) {
	s, store, _ := newTestService(t, DefaultConfig(), Deps{})
	require.NoError(t, store.UpsertProduct(testProduct("sku-1")))
	ctx := context.Background()

	e, err := s.CreateExperiment(ctx, NewExperiment{
		Name:           "ten percent up",
		ProductIDs:     []string{"sku-1"},
		PriceChangePct: 0.10,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExperimentRunning, e.Status)
	require.Len(t, e.Arms, 2)
	assert.Equal(t, 100.0, e.Arms[0].TestPrice)
	assert.Equal(t, 110.0, e.Arms[1].TestPrice)

	variant, err := s.Allocate(ctx, "sku-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.GroupVariant, variant.Group)
	assert.Equal(t, 110.0, variant.Price)
	assert.Equal(t, e.ID, variant.ExperimentID)

	control, err := s.Allocate(ctx, "sku-1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, models.GroupControl, control.Group)
	assert.Equal(t, 100.0, control.Price)

	require.NoError(t, s.RecordExperimentCounts(ctx, e.ID, models.GroupControl,
		models.GroupCounts{Impressions: 2000, Conversions: 45, Revenue: 4500}))
	require.NoError(t, s.RecordExperimentCounts(ctx, e.ID, models.GroupVariant,
		models.GroupCounts{Impressions: 2000, Conversions: 68, Revenue: 7480}))

	analysis, err := s.ExperimentResults(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, analysis.ExperimentID)
	assert.Equal(t, 0.0358, analysis.PValue)
	assert.Equal(t, models.VerdictAdopt, analysis.Verdict)

	ended, err := s.EndExperiment(ctx, e.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.ExperimentCompleted, ended.Status)
	require.NotNil(t, ended.EndAt)

	p, err := store.GetProduct("sku-1")
	require.NoError(t, err)
	assert.Equal(t, 110.0, p.CurrentPrice)

	history, err := store.PriceHistory("sku-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "experiment:"+e.ID, history[0].ChangedBy)

	_, err = s.EndExperiment(ctx, e.ID, true)
	assert.ErrorIs(t, err, ErrExperimentCompleted)

	after, err := s.Allocate(ctx, "sku-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.GroupNone, after.Group)
	assert.Equal(t, 110.0, after.Price)
}

func TestEndExperiment_KeepControl(t *testing.T) {
	s, store, _ := newTestService(t, DefaultConfig(), Deps{})
	require.NoError(t, store.UpsertProduct(testProduct("sku-1")))
	ctx := context.Background()

	e, err := s.CreateExperiment(ctx, NewExperiment{Name: "down", ProductIDs: []string{"sku-1"}, PriceChangePct: -0.1})
	require.NoError(t, err)

	_, err = s.EndExperiment(ctx, e.ID, false)
	require.NoError(t, err)

	p, err := store.GetProduct("sku-1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, p.CurrentPrice)
}

func TestCreateExperiment_DefaultsAndDrafts(t *testing.T) {
	s, store, _ := newTestService(t, DefaultConfig(), Deps{})
	require.NoError(t, store.UpsertProduct(testProduct("sku-1")))
	ctx := context.Background()

	_, err := s.CreateExperiment(ctx, NewExperiment{Name: "empty"})
	assert.Error(t, err)

	_, err = s.CreateExperiment(ctx, NewExperiment{Name: "missing", ProductIDs: []string{"nope"}})
	assert.Error(t, err)

	e, err := s.CreateExperiment(ctx, NewExperiment{
		Name:       "later",
		ProductIDs: []string{"sku-1"},
		StartAt:    testNow.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExperimentDraft, e.Status)
	assert.Equal(t, 0.05, e.PriceChangePct)
	assert.Equal(t, 105.0, e.Arms[1].TestPrice)

	alloc, err := s.Allocate(ctx, "sku-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.GroupNone, alloc.Group)

	s.now = func() time.Time { return testNow.Add(72 * time.Hour) }
	s.activateDueExperiments()

	got, err := s.GetExperiment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExperimentRunning, got.Status)
}

func TestRecordExperimentCounts_Validation(t *testing.T) {
	s, store, _ := newTestService(t, DefaultConfig(), Deps{})
	require.NoError(t, store.UpsertProduct(testProduct("sku-1")))
	ctx := context.Background()
	e, err := s.CreateExperiment(ctx, NewExperiment{Name: "x", ProductIDs: []string{"sku-1"}})
	require.NoError(t, err)

	assert.Error(t, s.RecordExperimentCounts(ctx, e.ID, models.GroupNone, models.GroupCounts{Impressions: 1}))
	assert.Error(t, s.RecordExperimentCounts(ctx, e.ID, models.GroupControl, models.GroupCounts{Impressions: 1, Conversions: 2}))
	assert.Error(t, s.RecordExperimentCounts(ctx, "missing", models.GroupControl, models.GroupCounts{Impressions: 1}))
}

func TestEndExperiment_AdoptSkipsAlreadyRepricedArms(t *testing.T) {
	s, store, _ := newTestService(t, DefaultConfig(), Deps{})
	require.NoError(t, store.UpsertProduct(testProduct("sku-1")))
	require.NoError(t, store.UpsertProduct(testProduct("sku-2")))
	ctx := context.Background()

	e, err := s.CreateExperiment(ctx, NewExperiment{
		Name:           "ten percent up",
		ProductIDs:     []string{"sku-1", "sku-2"},
		PriceChangePct: 0.10,
	})
	require.NoError(t, err)

	// sku-1 was repriced by an earlier adopt attempt that stopped part way.
	require.NoError(t, store.ApplyPriceChange(&models.PriceChange{
		ProductID:   "sku-1",
		NewPrice:    110,
		Reason:      "experiment: " + e.Name,
		ChangedBy:   "experiment:" + e.ID,
		EffectiveAt: testNow,
	}))

	ended, err := s.EndExperiment(ctx, e.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.ExperimentCompleted, ended.Status)

	for _, id := range []string{"sku-1", "sku-2"} {
		p, err := store.GetProduct(id)
		require.NoError(t, err)
		assert.Equal(t, 110.0, p.CurrentPrice, id)

		history, err := store.PriceHistory(id, 10)
		require.NoError(t, err)
		assert.Len(t, history, 1, id)
	}
}
