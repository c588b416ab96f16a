package drift

import (
	"strconv"
	"strings"

	"github.com/driftwatch/driftwatch/internal/domain"
)

const (
	// classifierSampleSize caps how many values per sequence feed type
	// inference. Classification is a heuristic; scanning full columns buys
	// nothing.
	classifierSampleSize = 100

	// numericParseRatio is the minimum fraction of parseable values for a
	// column to classify as numeric.
	numericParseRatio = 0.8

	// categoricalCardinalityRatio is the maximum distinct/total ratio for a
	// column to classify as categorical rather than free text.
	categoricalCardinalityRatio = 0.5
)

// ClassifyFeature decides how a shared column is scored, from sampled values
// of both the baseline and current datasets. Pure function.
func ClassifyFeature(baseline, current []string) domain.FeatureType {
	sample := make([]string, 0, classifierSampleSize*2)
	sample = append(sample, sampleValues(baseline)...)
	sample = append(sample, sampleValues(current)...)
	return ClassifyValues(sample)
}

// ClassifyValues infers a feature type from a single sampled value sequence.
// An empty sample classifies categorical: no information, and categorical is
// the only bucket that never divides by zero downstream.
func ClassifyValues(values []string) domain.FeatureType {
	values = sampleValues(values)
	if len(values) == 0 {
		return domain.FeatureTypeCategorical
	}

	parseable := 0
	distinct := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			parseable++
		}
		distinct[v] = struct{}{}
	}

	if float64(parseable)/float64(len(values)) > numericParseRatio {
		return domain.FeatureTypeNumeric
	}
	if float64(len(distinct))/float64(len(values)) < categoricalCardinalityRatio {
		return domain.FeatureTypeCategorical
	}
	return domain.FeatureTypeText
}

func sampleValues(values []string) []string {
	if len(values) > classifierSampleSize {
		return values[:classifierSampleSize]
	}
	return values
}
