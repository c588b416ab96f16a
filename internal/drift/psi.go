package drift

import (
	"fmt"
	"math"
)

const (
	// DefaultBinCount is the histogram width used when a run does not
	// configure its own.
	DefaultBinCount = 10

	// epsilon floors bin probabilities so the logarithm never sees zero.
	epsilon = 1e-4
)

// PSI computes the population stability index between two numeric samples
// using equal-width bins over the union range. Deterministic for identical
// inputs and bin count; never negative.
func PSI(baseline, current []float64, bins int) (float64, error) {
	if len(baseline) == 0 || len(current) == 0 {
		return 0, fmt.Errorf("%w: psi requires two non-empty numeric sequences", ErrEmptySample)
	}
	if bins <= 0 {
		bins = DefaultBinCount
	}

	min, max := baseline[0], baseline[0]
	for _, v := range baseline {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	for _, v := range current {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	// A degenerate range carries no information to compare.
	if min == max {
		return 0, nil
	}

	width := (max - min) / float64(bins)
	baselineCounts := binCounts(baseline, min, width, bins)
	currentCounts := binCounts(current, min, width, bins)

	psi := 0.0
	for i := 0; i < bins; i++ {
		pctBaseline := (float64(baselineCounts[i]) + epsilon) / float64(len(baseline))
		pctCurrent := (float64(currentCounts[i]) + epsilon) / float64(len(current))
		psi += (pctCurrent - pctBaseline) * math.Log(pctCurrent/pctBaseline)
	}

	// Clamp numerical noise; PSI is non-negative by construction.
	if psi < 0 {
		psi = 0
	}
	return psi, nil
}

func binCounts(values []float64, min, width float64, bins int) []int {
	counts := make([]int, bins)
	for _, v := range values {
		idx := int(math.Floor((v - min) / width))
		if idx < 0 {
			idx = 0
		}
		if idx > bins-1 {
			idx = bins - 1
		}
		counts[idx]++
	}
	return counts
}
