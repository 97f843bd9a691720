// Package competitorfeed fetches competitor price observations from an HTTP feed.
package competitorfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rewired-gh/pricepilot/internal/models"
)

// Client provides access to the competitor price feed
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// feedPrice is one entry of the feed's JSON array
type feedPrice struct {
	ProductID    string    `json:"product_id"`
	Competitor   string    `json:"competitor"`
	Price        float64   `json:"price"`
	ShippingCost float64   `json:"shipping_cost"`
	InStock      *bool     `json:"in_stock"`
	ObservedAt   time.Time `json:"observed_at"`
}

// NewClient creates a feed client. Non-positive retry settings fall back to 3 attempts and 1s.
func NewClient(baseURL string, timeout time.Duration, maxRetries int, retryDelay time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// FetchPrices returns the current competitor prices for a product.
// Entries with a non-positive price or a foreign product ID are dropped.
func (c *Client) FetchPrices(ctx context.Context, productID string) ([]models.CompetitorPrice, error) {
	u, err := url.Parse(c.baseURL + "/prices")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("product_id", productID)
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices for %s: %w", productID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, productID)
	}

	var entries []feedPrice
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode prices: %w", err)
	}

	now := time.Now()
	prices := make([]models.CompetitorPrice, 0, len(entries))
	for _, e := range entries {
		if e.Price <= 0 || e.Competitor == "" {
			continue
		}
		if e.ProductID != "" && e.ProductID != productID {
			continue
		}
		observed := e.ObservedAt
		if observed.IsZero() {
			observed = now
		}
		inStock := true
		if e.InStock != nil {
			inStock = *e.InStock
		}
		prices = append(prices, models.CompetitorPrice{
			ProductID:    productID,
			Competitor:   e.Competitor,
			Price:        e.Price,
			ShippingCost: e.ShippingCost,
			InStock:      inStock,
			ObservedAt:   observed,
		})
	}
	return prices, nil
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
		} else {
			return resp, nil
		}

		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * c.retryDelay):
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
