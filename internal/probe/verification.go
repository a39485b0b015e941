package probe

import (
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/secondvote/trends/internal/domain/quarter"
)

// tolerance bounds the relative difference accepted between two float
// values computed from the same records with a different grouping.
const tolerance = 1e-9

func approxEqual(a, b float64) bool {
	diff := math.Abs(a - b)
	if diff <= tolerance {
		return true
	}
	return diff <= tolerance*math.Max(math.Abs(a), math.Abs(b))
}

// verifyOrganization cross-checks the three views of one organization and
// returns one message per disagreement.
//
// The histogram value of a quarter must equal the sum of the breakdown
// series for that quarter, and the breakdown trend must equal the
// weighted-mean trend of the organization on its own. Every point must
// carry a canonical quarter and its matching axis label.
func verifyOrganization(org string, hist, breakdown Selection, trend []Point) []string {
	out := verifyLabels(org, hist.Series, breakdown.Series, breakdown.Trend, trend)

	for i := 1; i < len(hist.Series); i++ {
		if hist.Series[i-1].Quarter >= hist.Series[i].Quarter {
			out = append(out, fmt.Sprintf("%s: histogram quarters out of order at %s", org, hist.Series[i].Quarter))
		}
	}

	sums := lo.Reduce(breakdown.Series, func(acc map[string]float64, p Point, _ int) map[string]float64 {
		acc[p.Quarter] += p.Value
		return acc
	}, map[string]float64{})

	if len(sums) != len(hist.Series) {
		out = append(out, fmt.Sprintf("%s: histogram has %d quarters, breakdown has %d", org, len(hist.Series), len(sums)))
	}
	for _, p := range hist.Series {
		sum, ok := sums[p.Quarter]
		if !ok {
			out = append(out, fmt.Sprintf("%s: quarter %s missing from breakdown", org, p.Quarter))
			continue
		}
		if !approxEqual(p.Value, sum) {
			out = append(out, fmt.Sprintf("%s: quarter %s histogram %.6g != breakdown sum %.6g", org, p.Quarter, p.Value, sum))
		}
	}

	want := lo.SliceToMap(trend, func(p Point) (string, float64) { return p.Quarter, p.Value })
	if len(want) != len(breakdown.Trend) {
		out = append(out, fmt.Sprintf("%s: breakdown trend has %d quarters, trend view has %d", org, len(breakdown.Trend), len(want)))
	}
	for _, p := range breakdown.Trend {
		v, ok := want[p.Quarter]
		if !ok {
			out = append(out, fmt.Sprintf("%s: trend quarter %s missing from trend view", org, p.Quarter))
			continue
		}
		if !approxEqual(p.Value, v) {
			out = append(out, fmt.Sprintf("%s: quarter %s breakdown trend %.6g != trend view %.6g", org, p.Quarter, p.Value, v))
		}
	}
	return out
}

func verifyLabels(org string, series ...[]Point) []string {
	var out []string
	for _, points := range series {
		for _, p := range points {
			l, err := quarter.Parse(p.Quarter)
			if err != nil {
				out = append(out, fmt.Sprintf("%s: %v", org, err))
				continue
			}
			if p.Label != l.Display() {
				out = append(out, fmt.Sprintf("%s: quarter %s labelled %q, want %q", org, p.Quarter, p.Label, l.Display()))
			}
		}
	}
	return out
}
