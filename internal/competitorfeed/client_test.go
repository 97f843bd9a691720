package competitorfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prices", r.URL.Path)
		assert.Equal(t, "sku-1", r.URL.Query().Get("product_id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"product_id":"sku-1","competitor":"acme","price":41.5,"shipping_cost":2,"in_stock":false,"observed_at":"2026-03-01T10:00:00Z"},
			{"product_id":"sku-1","competitor":"globex","price":39.99},
			{"product_id":"sku-1","competitor":"broken","price":0},
			{"product_id":"sku-9","competitor":"other","price":10}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, 3, time.Millisecond)
	prices, err := c.FetchPrices(context.Background(), "sku-1")
	require.NoError(t, err)
	require.Len(t, prices, 2)

	assert.Equal(t, "acme", prices[0].Competitor)
	assert.Equal(t, 43.5, prices[0].TotalPrice())
	assert.False(t, prices[0].InStock)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), prices[0].ObservedAt.UTC())

	assert.Equal(t, "globex", prices[1].Competitor)
	assert.True(t, prices[1].InStock, "missing in_stock defaults to true")
	assert.False(t, prices[1].ObservedAt.IsZero())
}

func TestFetchPrices_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"competitor":"acme","price":20}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, 3, time.Millisecond)
	prices, err := c.FetchPrices(context.Background(), "sku-1")
	require.NoError(t, err)
	assert.Len(t, prices, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchPrices_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, 2, time.Millisecond)
	_, err := c.FetchPrices(context.Background(), "sku-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchPrices_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, 3, time.Millisecond)
	_, err := c.FetchPrices(context.Background(), "sku-1")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchPrices_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, 1, time.Millisecond)
	_, err := c.FetchPrices(context.Background(), "sku-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}
