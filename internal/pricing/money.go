package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the precision optimal prices are rounded to.
const CurrencyPlaces = 2

// Round rounds v half away from zero to the given decimal places. Non-finite
// values are returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func formatMoney(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(CurrencyPlaces)
}

func formatPct(fraction float64) string {
	return decimal.NewFromFloat(fraction).Mul(decimal.NewFromInt(100)).Round(2).String() + "%"
}
