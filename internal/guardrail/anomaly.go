package guardrail

import (
	"fmt"
	"math"
)

const (
	// MinHistory is the number of past prices needed before anomalies are
	// reported.
	MinHistory = 5

	trendWindow      = 5
	outlierSigmas    = 3.0
	reversalMargin   = 0.05
	volatilityFactor = 3.0
)

// DetectAnomalies compares newPrice with history, ordered newest first. It
// reports a statistical outlier, a reversal of a monotonic recent trend and
// a change much larger than recent volatility. Short histories report
// nothing.
func DetectAnomalies(history []float64, newPrice float64) []string {
	if len(history) < MinHistory {
		return nil
	}
	var anomalies []string

	var w welford
	for _, p := range history {
		w.add(p)
	}
	std := w.popStdDev()
	if math.Abs(newPrice-w.mean) > outlierSigmas*std {
		anomalies = append(anomalies, fmt.Sprintf("Price %s is a statistical outlier (mean: %s, std: %s)",
			money(newPrice), money(w.mean), money(std)))
	}

	// Newest first: each price at least its predecessor is a rising trend.
	recent := history[:trendWindow]
	latest := recent[0]
	switch {
	case monotonic(recent, func(newer, older float64) bool { return newer >= older }):
		if newPrice < latest*(1-reversalMargin) {
			anomalies = append(anomalies, "Sudden reversal from increasing trend")
		}
	case monotonic(recent, func(newer, older float64) bool { return newer <= older }):
		if newPrice > latest*(1+reversalMargin) {
			anomalies = append(anomalies, "Sudden reversal from decreasing trend")
		}
	}

	n := min(trendWindow, len(history)-1)
	var volatility float64
	for i := 0; i < n; i++ {
		volatility += math.Abs(history[i]-history[i+1]) / history[i+1]
	}
	volatility /= float64(n)

	if latest != 0 {
		change := math.Abs(newPrice-latest) / latest
		if change > volatility*volatilityFactor {
			anomalies = append(anomalies, fmt.Sprintf("Price change %s exceeds typical volatility %s", pct(change), pct(volatility)))
		}
	}
	return anomalies
}

func monotonic(xs []float64, ok func(a, b float64) bool) bool {
	for i := 0; i+1 < len(xs); i++ {
		if !ok(xs[i], xs[i+1]) {
			return false
		}
	}
	return true
}
