package drift

import (
	"fmt"
	"math"
	"strings"
)

// KLDivergence computes the Kullback-Leibler divergence of the current
// categorical distribution relative to the baseline. Not symmetric: the
// result answers "how surprising is current, assuming baseline".
func KLDivergence(baseline, current []string) (float64, error) {
	if len(baseline) == 0 || len(current) == 0 {
		return 0, fmt.Errorf("%w: kl divergence requires two non-empty category sequences", ErrEmptySample)
	}

	baselineCounts := categoryCounts(baseline)
	currentCounts := categoryCounts(current)

	categories := make(map[string]struct{}, len(baselineCounts)+len(currentCounts))
	for c := range baselineCounts {
		categories[c] = struct{}{}
	}
	for c := range currentCounts {
		categories[c] = struct{}{}
	}

	kl := 0.0
	for c := range categories {
		p := float64(baselineCounts[c]) / float64(len(baseline))
		q := float64(currentCounts[c]) / float64(len(current))
		// Categories present in only one sequence still contribute via the
		// epsilon floor instead of blowing up the logarithm.
		if p == 0 {
			p = epsilon
		}
		if q == 0 {
			q = epsilon
		}
		kl += q * math.Log(q/p)
	}
	return kl, nil
}

func categoryCounts(values []string) map[string]int {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[strings.TrimSpace(v)]++
	}
	return counts
}
