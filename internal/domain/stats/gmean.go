// Package stats holds the statistics used by the aggregation engine.
package stats

import (
	"fmt"
	"math"
	"slices"
)

// Weighted is a distinct score value and the number of times it occurred.
type Weighted struct {
	Value  float64
	Weight int
}

// Frequencies collapses scores into distinct values with their counts,
// ordered by value ascending.
func Frequencies(scores []float64) []Weighted {
	counts := make(map[float64]int, len(scores))
	for _, s := range scores {
		counts[s]++
	}
	out := make([]Weighted, 0, len(counts))
	for v, w := range counts {
		out = append(out, Weighted{Value: v, Weight: w})
	}
	slices.SortFunc(out, func(a, b Weighted) int {
		switch {
		case a.Value < b.Value:
			return -1
		case a.Value > b.Value:
			return 1
		}
		return 0
	})
	return out
}

// WeightedGeometricMean returns exp(Σ wᵢ·ln vᵢ / Σ wᵢ) over the distinct
// values vᵢ of scores, each weighted by its frequency wᵢ. Every score must
// be finite and strictly positive.
func WeightedGeometricMean(scores []float64) (float64, error) {
	if len(scores) == 0 {
		return 0, fmt.Errorf("%w: geometric mean of no scores", ErrDomain)
	}
	for _, s := range scores {
		if !(s > 0) || math.IsInf(s, 1) {
			return 0, fmt.Errorf("%w: geometric mean needs positive finite scores, got %v", ErrDomain, s)
		}
	}

	// Weights are reduced by their gcd and accumulated in ascending value
	// order, so multisets with equal weight ratios give bit-equal output.
	freqs := Frequencies(scores)
	g := 0
	for _, f := range freqs {
		g = gcd(g, f.Weight)
	}
	var logSum, weightSum float64
	for _, f := range freqs {
		w := float64(f.Weight / g)
		logSum += w * math.Log(f.Value)
		weightSum += w
	}
	return math.Exp(logSum / weightSum), nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
