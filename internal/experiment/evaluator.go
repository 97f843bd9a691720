// Package experiment evaluates A/B price tests and assigns users to arms.
package experiment

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rewired-gh/pricepilot/internal/models"
	"github.com/rewired-gh/pricepilot/internal/pricing"
)

// Config holds the evaluation thresholds.
type Config struct {
	// MinImpressions each arm must exceed before a test is run.
	MinImpressions int
	// Alpha is the significance level.
	Alpha float64
	// Z is the critical value for the lift confidence interval.
	Z float64
}

// DefaultConfig is a 95% two-sided evaluation requiring more than 30
// impressions per arm.
func DefaultConfig() Config {
	return Config{MinImpressions: 30, Alpha: 0.05, Z: 1.96}
}

// Evaluator compares the conversion rates of two experiment arms.
type Evaluator struct {
	cfg Config
}

// NewEvaluator returns an Evaluator. Zero fields take their default.
func NewEvaluator(cfg Config) *Evaluator {
	def := DefaultConfig()
	if cfg.MinImpressions <= 0 {
		cfg.MinImpressions = def.MinImpressions
	}
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = def.Alpha
	}
	if cfg.Z <= 0 {
		cfg.Z = def.Z
	}
	return &Evaluator{cfg: cfg}
}

// Evaluate runs a chi-square test of independence on the 2x2 table of
// conversions and non-conversions per arm and recommends a decision.
// Arms at or below the impression minimum yield p = 1 and zero lift.
func (e *Evaluator) Evaluate(control, variant models.GroupCounts) models.ExperimentAnalysis {
	cfg := e.cfg
	if cfg.MinImpressions == 0 {
		cfg = DefaultConfig()
	}

	controlRate := rate(control)
	variantRate := rate(variant)

	a := models.ExperimentAnalysis{
		Control:           metrics(control, controlRate),
		Variant:           metrics(variant, variantRate),
		SampleSizeControl: control.Impressions,
		SampleSizeVariant: variant.Impressions,
	}

	if control.Impressions <= cfg.MinImpressions || variant.Impressions <= cfg.MinImpressions {
		a.PValue = 1
		a.Verdict = models.VerdictInsufficientData
		a.Recommendation = "Insufficient data for statistical analysis"
		return a
	}

	pValue := ChiSquarePValue(
		[2]float64{float64(control.Conversions), float64(control.Impressions - control.Conversions)},
		[2]float64{float64(variant.Conversions), float64(variant.Impressions - variant.Conversions)},
	)

	var lift float64
	if controlRate != 0 {
		lift = (variantRate - controlRate) / controlRate * 100
	}
	se := math.Sqrt(controlRate*(1-controlRate)/float64(control.Impressions) +
		variantRate*(1-variantRate)/float64(variant.Impressions))
	margin := cfg.Z * se * 100

	a.PValue = pricing.Round(pValue, 4)
	a.StatisticalSignificance = pricing.Round(1-pValue, 3)
	a.LiftPercentage = pricing.Round(lift, 1)
	a.ConfidenceInterval = [2]float64{pricing.Round(lift-margin, 1), pricing.Round(lift+margin, 1)}

	switch {
	case pValue < cfg.Alpha && lift > 0:
		a.Verdict = models.VerdictAdopt
		a.Recommendation = fmt.Sprintf("Adopt variant pricing - %.1f%% lift in conversion rate (p=%.3f)", lift, pValue)
	case pValue < cfg.Alpha && lift < 0:
		a.Verdict = models.VerdictKeepControl
		a.Recommendation = fmt.Sprintf("Keep control pricing - variant shows %.1f%% decrease (p=%.3f)", lift, pValue)
	default:
		a.Verdict = models.VerdictContinueTesting
		a.Recommendation = fmt.Sprintf("No significant difference detected (p=%.3f). Continue testing.", pValue)
	}
	return a
}

// Evaluate runs an Evaluator with DefaultConfig.
func Evaluate(control, variant models.GroupCounts) models.ExperimentAnalysis {
	return NewEvaluator(DefaultConfig()).Evaluate(control, variant)
}

// ChiSquarePValue tests independence of a 2x2 contingency table given as two
// rows. Yates' continuity correction is applied, as is usual for one degree
// of freedom. A table with an empty row or column has no test and yields 1.
func ChiSquarePValue(row0, row1 [2]float64) float64 {
	observed := [2][2]float64{row0, row1}
	rowSum := [2]float64{row0[0] + row0[1], row1[0] + row1[1]}
	colSum := [2]float64{row0[0] + row1[0], row0[1] + row1[1]}
	total := rowSum[0] + rowSum[1]
	if total == 0 {
		return 1
	}

	var chi2 float64
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			expected := rowSum[i] * colSum[j] / total
			if expected == 0 {
				return 1
			}
			diff := expected - observed[i][j]
			corrected := observed[i][j] + math.Copysign(math.Min(0.5, math.Abs(diff)), diff)
			chi2 += (corrected - expected) * (corrected - expected) / expected
		}
	}
	return distuv.ChiSquared{K: 1}.Survival(chi2)
}

func rate(g models.GroupCounts) float64 {
	return float64(g.Conversions) / float64(max(g.Impressions, 1))
}

func metrics(g models.GroupCounts, conversionRate float64) models.GroupMetrics {
	return models.GroupMetrics{
		ConversionRate: pricing.Round(conversionRate, 4),
		AvgOrderValue:  pricing.Round(g.Revenue/float64(max(g.Conversions, 1)), pricing.CurrencyPlaces),
		Revenue:        pricing.Round(g.Revenue, pricing.CurrencyPlaces),
	}
}
