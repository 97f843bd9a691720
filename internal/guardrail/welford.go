package guardrail

import "math"

// welford accumulates a running mean and sum of squared deviations in one
// pass.
type welford struct {
	count int
	mean  float64
	m2    float64
}

func (w *welford) add(x float64) {
	w.count++
	delta := x - w.mean
	w.mean += delta / float64(w.count)
	w.m2 += delta * (x - w.mean)
}

// popStdDev is the population standard deviation; zero below two samples.
func (w *welford) popStdDev() float64 {
	if w.count < 2 {
		return 0
	}
	return math.Sqrt(w.m2 / float64(w.count))
}
