// Package guardrail vets a proposed price before it is applied: hard bounds,
// margin floor, change frequency and change size, plus statistical anomaly
// checks against recent price history.
package guardrail

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/pricepilot/internal/models"
)

// Config holds the guardrail limits.
type Config struct {
	MinMargin              float64
	MaxChangePct           float64
	MinHoursBetweenChanges float64
}

func DefaultConfig() Config {
	return Config{
		MinMargin:              0.15,
		MaxChangePct:           0.20,
		MinHoursBetweenChanges: 4,
	}
}

// Decision is the outcome of a guardrail check. A rejected price carries the
// reason and any alerts the violation raised.
type Decision struct {
	Approved bool
	Reason   string
	Alerts   []models.Alert
}

type Checker struct {
	config Config
}

func NewChecker(config Config) *Checker {
	return &Checker{config: config}
}

// Check vets newPrice for p. lastChange is the most recent price-history row,
// or nil when the price has never changed; frequency and size limits only
// apply once there is a history.
func (c *Checker) Check(p models.Product, newPrice float64, lastChange *models.PriceChange, now time.Time) Decision {
	if newPrice < p.MinPrice {
		return c.reject(fmt.Sprintf("Price %s is below minimum %s", money(newPrice), money(p.MinPrice)),
			c.alert(p, models.AlertPriceAnomaly, now,
				fmt.Sprintf("Price below minimum for %s", p.Name),
				fmt.Sprintf("Attempted price %s is below minimum %s", money(newPrice), money(p.MinPrice))))
	}
	if newPrice > p.MaxPrice {
		return c.reject(fmt.Sprintf("Price %s is above maximum %s", money(newPrice), money(p.MaxPrice)),
			c.alert(p, models.AlertPriceAnomaly, now,
				fmt.Sprintf("Price above maximum for %s", p.Name),
				fmt.Sprintf("Attempted price %s is above maximum %s", money(newPrice), money(p.MaxPrice))))
	}

	margin := math.Inf(-1)
	if newPrice > 0 {
		margin = (newPrice - p.Cost) / newPrice
	}
	if margin < c.config.MinMargin {
		return c.reject(fmt.Sprintf("Price results in margin %s, below minimum %s", pct(margin), pct(c.config.MinMargin)),
			c.alert(p, models.AlertMarginViolation, now,
				fmt.Sprintf("Margin violation for %s", p.Name),
				fmt.Sprintf("Price %s results in margin %s, below minimum %s", money(newPrice), pct(margin), pct(c.config.MinMargin))))
	}

	if lastChange == nil {
		return Decision{Approved: true}
	}

	hours := now.Sub(lastChange.EffectiveAt).Hours()
	if hours < c.config.MinHoursBetweenChanges {
		return c.reject(fmt.Sprintf("Price changed too recently (%.1f hours ago)", hours))
	}

	if p.CurrentPrice > 0 {
		change := math.Abs((newPrice - p.CurrentPrice) / p.CurrentPrice)
		if change > c.config.MaxChangePct {
			return c.reject(fmt.Sprintf("Price change of %s exceeds maximum allowed", pct(change)),
				c.alert(p, models.AlertPriceAnomaly, now,
					fmt.Sprintf("Large price change for %s", p.Name),
					fmt.Sprintf("Price change of %s exceeds maximum %s", pct(change), pct(c.config.MaxChangePct))))
		}
	}

	return Decision{Approved: true}
}

func (c *Checker) reject(reason string, alerts ...models.Alert) Decision {
	return Decision{Reason: reason, Alerts: alerts}
}

func (c *Checker) alert(p models.Product, typ models.AlertType, now time.Time, title, message string) models.Alert {
	return models.Alert{
		Severity:  models.SeverityWarning,
		Type:      typ,
		Title:     title,
		Message:   message,
		ProductID: p.ID,
		CreatedAt: now,
	}
}

func money(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

func pct(fraction float64) string {
	if math.IsInf(fraction, 0) || math.IsNaN(fraction) {
		return fmt.Sprintf("%v", fraction)
	}
	return fmt.Sprintf("%.1f%%", fraction*100)
}
