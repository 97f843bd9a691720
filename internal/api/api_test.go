package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/pricepilot/internal/models"
	"github.com/rewired-gh/pricepilot/internal/repricer"
	"github.com/rewired-gh/pricepilot/internal/storage"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	svc := repricer.New(repricer.Deps{Store: store}, repricer.DefaultConfig())
	return NewRouter(&Handler{Service: svc}, gin.TestMode)
}

func do(t *testing.T, r http.Handler, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(path, "/api/") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func snapshot() models.FeatureSnapshot {
	return models.FeatureSnapshot{
		ProductID:           "sku-1",
		CurrentPrice:        39.99,
		Cost:                12.00,
		MinPrice:            25.00,
		MaxPrice:            55.00,
		StockQuantity:       200,
		StockVelocity:       5,
		Elasticity:          -2.1,
		CompetitorAvgPrice:  37.99,
		CompetitorMinPrice:  34.50,
		MarketPosition:      1.05,
		DaysSinceLastChange: 30,
		Category:            "audio",
		SeasonalityFactor:   1.0,
		ConversionRate:      0.02,
		ReturnRate:          0.05,
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)

	code, _ := do(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestOptimize(t *testing.T) {
	r := newTestRouter(t)

	code, env := do(t, r, http.MethodPost, "/api/v1/optimize", gin.H{
		"snapshot":  snapshot(),
		"objective": "balance",
		"constraints": gin.H{
			"max_change_pct":   0.15,
			"min_margin":       0.20,
			"max_above_market": 0.10,
			"unknown_key":      1,
		},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, env.Code)

	var res models.OptimizationResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 33.99, res.OptimalPrice)
	assert.Equal(t, models.Balanced, res.Objective)
	assert.Equal(t, []string{"max_change_constraint: 15%"}, res.ConstraintsApplied)
}

func TestOptimize_BadInput(t *testing.T) {
	r := newTestRouter(t)

	code, env := do(t, r, http.MethodPost, "/api/v1/optimize", gin.H{"snapshot": snapshot(), "objective": "maximize_fun"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, http.StatusBadRequest, env.Code)
	assert.Contains(t, env.Message, "unknown objective")

	bad := snapshot()
	bad.MinPrice = 60
	code, env = do(t, r, http.MethodPost, "/api/v1/optimize", gin.H{"snapshot": bad})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "min price")
}

func TestBatchOptimize_PreservesOrder(t *testing.T) {
	r := newTestRouter(t)

	var snaps []models.FeatureSnapshot
	for _, id := range []string{"a", "b", "c"} {
		s := snapshot()
		s.ProductID = id
		snaps = append(snaps, s)
	}
	code, env := do(t, r, http.MethodPost, "/api/v1/optimize/batch", gin.H{"snapshots": snaps, "objective": "maximize_profit"})
	require.Equal(t, http.StatusOK, code)

	var res []models.OptimizationResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.Len(t, res, 3)
	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, res[i].ProductID)
	}
}

func TestEstimateElasticity(t *testing.T) {
	r := newTestRouter(t)

	code, _ := do(t, r, http.MethodPost, "/api/v1/elasticity", gin.H{
		"product_id":   "sku-1",
		"observations": []models.SalesObservation{{Price: 10, Quantity: 5}},
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := do(t, r, http.MethodPost, "/api/v1/elasticity", gin.H{
		"product_id": "sku-1",
		"observations": []models.SalesObservation{
			{Price: 10, Quantity: 5}, {Price: 11, Quantity: 4}, {Price: 10, Quantity: 5},
		},
	})
	require.Equal(t, http.StatusOK, code)
	var est models.ElasticityEstimate
	require.NoError(t, json.Unmarshal(env.Data, &est))
	assert.True(t, est.Insufficient)
	assert.Equal(t, "Not enough data points", est.Error)
}

func TestEvaluate(t *testing.T) {
	r := newTestRouter(t)

	code, env := do(t, r, http.MethodPost, "/api/v1/experiments/evaluate", gin.H{
		"control": models.GroupCounts{Impressions: 2000, Conversions: 45},
		"variant": models.GroupCounts{Impressions: 2000, Conversions: 68},
	})
	require.Equal(t, http.StatusOK, code)
	var a models.ExperimentAnalysis
	require.NoError(t, json.Unmarshal(env.Data, &a))
	assert.Equal(t, 0.0358, a.PValue)
	assert.Equal(t, models.VerdictAdopt, a.Verdict)

	code, _ = do(t, r, http.MethodPost, "/api/v1/experiments/evaluate", gin.H{
		"control": models.GroupCounts{Impressions: 10, Conversions: 11},
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestProductEndpoints(t *testing.T) {
	r := newTestRouter(t)

	code, _ := do(t, r, http.MethodGet, "/api/v1/products/missing/competition", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, r, http.MethodPut, "/api/v1/products/sku-1", models.Product{
		Name: "Headphones", Category: "audio", CurrentPrice: 39.99, Cost: 12, MinPrice: 25, MaxPrice: 55,
		StockQuantity: 200, StockVelocity: 5, Active: true,
	})
	require.Equal(t, http.StatusOK, code)

	code, env := do(t, r, http.MethodGet, "/api/v1/products/sku-1/elasticity?days=30", nil)
	require.Equal(t, http.StatusOK, code)
	var est models.ElasticityEstimate
	require.NoError(t, json.Unmarshal(env.Data, &est))
	assert.True(t, est.Insufficient)

	code, _ = do(t, r, http.MethodGet, "/api/v1/products/sku-1/elasticity?days=-3", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, http.MethodPost, "/api/v1/products/sku-1/competitor-prices", gin.H{
		"prices": []gin.H{{"competitor": "acme", "price": 37.5, "in_stock": true}},
	})
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, r, http.MethodGet, "/api/v1/products/sku-1/competition", nil)
	require.Equal(t, http.StatusOK, code)
	var pos struct {
		Position           string  `json:"position"`
		AvgCompetitorPrice float64 `json:"avg_competitor_price"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &pos))
	assert.Equal(t, "above_market", pos.Position)
	assert.Equal(t, 37.5, pos.AvgCompetitorPrice)

	code, _ = do(t, r, http.MethodGet, "/api/v1/cycles/last", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = do(t, r, http.MethodPost, "/api/v1/cycles", nil)
	require.Equal(t, http.StatusOK, code)
	var report models.CycleReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 1, report.ProductsEvaluated)

	code, _ = do(t, r, http.MethodGet, "/api/v1/cycles/last", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestExperimentEndpoints(t *testing.T) {
	r := newTestRouter(t)
	code, _ := do(t, r, http.MethodPut, "/api/v1/products/sku-1", models.Product{
		Name: "Headphones", CurrentPrice: 40, Cost: 12, MinPrice: 25, MaxPrice: 55, Active: true,
	})
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, r, http.MethodPost, "/api/v1/experiments", gin.H{"name": "no products"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := do(t, r, http.MethodPost, "/api/v1/experiments", gin.H{
		"name": "ten up", "product_ids": []string{"sku-1"}, "price_change_pct": 0.1,
	})
	require.Equal(t, http.StatusOK, code)
	var e models.Experiment
	require.NoError(t, json.Unmarshal(env.Data, &e))
	assert.Equal(t, models.ExperimentRunning, e.Status)

	code, env = do(t, r, http.MethodGet, "/api/v1/allocation/sku-1/user-1", nil)
	require.Equal(t, http.StatusOK, code)
	var alloc repricer.Allocation
	require.NoError(t, json.Unmarshal(env.Data, &alloc))
	assert.Equal(t, models.GroupVariant, alloc.Group)
	assert.Equal(t, 44.0, alloc.Price)

	base := "/api/v1/experiments/" + e.ID
	code, _ = do(t, r, http.MethodPost, base+"/counts", gin.H{"group": "control", "impressions": 2000, "conversions": 45})
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, http.MethodPost, base+"/counts", gin.H{"group": "variant", "impressions": 2000, "conversions": 68})
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, http.MethodPost, base+"/counts", gin.H{"group": "other", "impressions": 1})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = do(t, r, http.MethodGet, base+"/results", nil)
	require.Equal(t, http.StatusOK, code)
	var a models.ExperimentAnalysis
	require.NoError(t, json.Unmarshal(env.Data, &a))
	assert.Equal(t, e.ID, a.ExperimentID)
	assert.Equal(t, 51.1, a.LiftPercentage)

	code, env = do(t, r, http.MethodGet, "/api/v1/experiments?status=running", nil)
	require.Equal(t, http.StatusOK, code)
	var list []models.Experiment
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)

	code, _ = do(t, r, http.MethodPost, base+"/end", gin.H{"adopt": true})
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, http.MethodPost, base+"/end", gin.H{"adopt": true})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, r, http.MethodGet, "/api/v1/experiments/missing/results", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t)
	do(t, r, http.MethodGet, "/healthz", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pricepilot_http_request_duration_seconds")
}
