package models

// FactorPrices holds the five candidate prices, one per pricing signal.
type FactorPrices struct {
	Elasticity  float64 `json:"elasticity"`
	Competition float64 `json:"competition"`
	Inventory   float64 `json:"inventory"`
	Seasonality float64 `json:"seasonality"`
	Margin      float64 `json:"margin"`
}

// Values returns the factor prices in fixed factor order.
func (f FactorPrices) Values() []float64 {
	return []float64{f.Elasticity, f.Competition, f.Inventory, f.Seasonality, f.Margin}
}

// OptimizationResult is the recommendation for one product.
type OptimizationResult struct {
	ProductID             string       `json:"product_id"`
	Category              string       `json:"category,omitempty"`
	Objective             Objective    `json:"objective"`
	CurrentPrice          float64      `json:"current_price"`
	OptimalPrice          float64      `json:"optimal_price"`
	ExpectedRevenueChange float64      `json:"expected_revenue_change"` // percent
	ExpectedProfitChange  float64      `json:"expected_profit_change"`  // percent
	ExpectedVolumeChange  float64      `json:"expected_volume_change"`  // percent
	ConfidenceScore       float64      `json:"confidence_score"`
	Factors               FactorPrices `json:"factors"`
	ConstraintsApplied    []string     `json:"constraints_applied"`
}

// Interpretation buckets an elasticity coefficient.
type Interpretation string

const (
	Inelastic          Interpretation = "inelastic"
	ModeratelyElastic  Interpretation = "moderately elastic"
	HighlyElastic      Interpretation = "highly elastic"
	InsufficientSignal Interpretation = "insufficient data"
)

// PriceAction is the direction a recommendation moves the price.
type PriceAction string

const (
	PriceIncrease PriceAction = "increase"
	PriceDecrease PriceAction = "decrease"
)

// PriceRecommendation is the move from the current to the estimated optimal
// price.
type PriceRecommendation struct {
	Action     PriceAction `json:"action"`
	Amount     float64     `json:"amount"`
	Percentage float64     `json:"percentage"`
}

// ElasticityEstimate is the result of fitting a demand curve to a product's
// price/quantity history. Insufficient inputs still produce an estimate with
// Insufficient set, Elasticity and Confidence zero, and Error describing why.
type ElasticityEstimate struct {
	ProductID          string               `json:"product_id"`
	Elasticity         float64              `json:"elasticity"`
	Confidence         float64              `json:"confidence"`
	DataPoints         int                  `json:"data_points"`
	CurrentPrice       float64              `json:"current_price"`
	OptimalPrice       float64              `json:"optimal_price"`
	Interpretation     Interpretation       `json:"interpretation"`
	Description        string               `json:"description"`
	RevenueOpportunity float64              `json:"revenue_opportunity"`
	Recommendation     *PriceRecommendation `json:"recommendation,omitempty"`
	Insufficient       bool                 `json:"insufficient"`
	Error              string               `json:"error,omitempty"`
}

// GroupCounts are the aggregate counts for one experiment arm.
type GroupCounts struct {
	Impressions int     `json:"impressions"`
	Conversions int     `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}

// GroupMetrics are the derived per-arm metrics of an experiment.
type GroupMetrics struct {
	ConversionRate float64 `json:"conversion_rate"`
	AvgOrderValue  float64 `json:"avg_order_value"`
	Revenue        float64 `json:"revenue"`
}

// Verdict is the decision an experiment analysis arrives at.
type Verdict string

const (
	VerdictAdopt            Verdict = "adopt"
	VerdictKeepControl      Verdict = "keep_control"
	VerdictContinueTesting  Verdict = "continue_testing"
	VerdictInsufficientData Verdict = "insufficient_data"
)

// ExperimentAnalysis is the statistical evaluation of an A/B price test.
type ExperimentAnalysis struct {
	ExperimentID            string       `json:"experiment_id,omitempty"`
	Control                 GroupMetrics `json:"control_metrics"`
	Variant                 GroupMetrics `json:"variant_metrics"`
	PValue                  float64      `json:"p_value"`
	StatisticalSignificance float64      `json:"statistical_significance"`
	ConfidenceInterval      [2]float64   `json:"confidence_interval"`
	LiftPercentage          float64      `json:"lift_percentage"`
	SampleSizeControl       int          `json:"sample_size_control"`
	SampleSizeVariant       int          `json:"sample_size_variant"`
	Verdict                 Verdict      `json:"verdict"`
	Recommendation          string       `json:"recommendation"`
}
