package detector

import (
	"math"

	"github.com/MeKo-Tech/langdetect/internal/language"
)

// Fusion combines independent distributions over size languages into one.
// No distribution at all yields the all-zero vector.
type Fusion func(dists []language.Distribution, size int) language.Distribution

// CombineLog multiplies the distributions in log space: logs are summed, shifted by their
// maximum, exponentiated and renormalized. This is the default fusion.
func CombineLog(dists []language.Distribution, size int) language.Distribution {
	out := language.Zeros(size)
	if len(dists) == 0 {
		return out
	}

	logs := make([]float64, size)
	for _, d := range dists {
		for i := range logs {
			logs[i] += math.Log(d[i])
		}
	}

	maxLog := math.Inf(-1)
	for _, v := range logs {
		maxLog = max(maxLog, v)
	}
	if math.IsInf(maxLog, -1) || math.IsNaN(maxLog) {
		// every language was ruled out by some vote
		return out
	}

	total := 0.0
	for i, v := range logs {
		out[i] = math.Exp(v - maxLog)
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

// CombineProduct multiplies the distributions directly and renormalizes. Equivalent to
// CombineLog in exact arithmetic, but long token lists can underflow to zero.
func CombineProduct(dists []language.Distribution, size int) language.Distribution {
	out := language.Zeros(size)
	if len(dists) == 0 {
		return out
	}
	for i := range out {
		out[i] = 1
	}
	for _, d := range dists {
		for i := range out {
			out[i] *= d[i]
		}
	}
	return out.Normalize()
}
