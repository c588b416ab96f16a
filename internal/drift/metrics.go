package drift

import (
	"strconv"
	"strings"

	"github.com/driftwatch/driftwatch/internal/domain"

	"github.com/google/uuid"
)

const (
	// PSIDriftThreshold flags numeric features whose PSI exceeds it.
	PSIDriftThreshold = 0.2
	// KLDriftThreshold flags categorical features whose KL divergence exceeds
	// it. The two cutoffs are independent per-metric thresholds, not
	// interchangeable.
	KLDriftThreshold = 0.1
)

// FeatureSample holds the two parallel value sequences for one shared column.
type FeatureSample struct {
	Name     string
	Baseline []string
	Current  []string
}

// BuildMetric classifies one feature and scores it with the matching
// estimator. Text features produce an unscored metric with drift_flag=false
// rather than disappearing from the output. Estimator failures downgrade the
// feature to unscored instead of aborting the run.
func BuildMetric(runID uuid.UUID, sample FeatureSample, bins int) domain.FeatureMetric {
	metric := domain.FeatureMetric{
		DriftRunID:  runID,
		FeatureName: sample.Name,
		FeatureType: ClassifyFeature(sample.Baseline, sample.Current),
	}

	switch metric.FeatureType {
	case domain.FeatureTypeNumeric:
		baseline := coerceNumeric(sample.Baseline)
		current := coerceNumeric(sample.Current)
		if len(baseline) == 0 || len(current) == 0 {
			// Classification let unparseable values slip through; score
			// nothing rather than divide by zero.
			metric.FeatureType = domain.FeatureTypeText
			return metric
		}
		psi, err := PSI(baseline, current, bins)
		if err != nil {
			metric.FeatureType = domain.FeatureTypeText
			return metric
		}
		metric.PSI = &psi
		metric.DriftFlag = psi > PSIDriftThreshold
	case domain.FeatureTypeCategorical:
		kl, err := KLDivergence(sample.Baseline, sample.Current)
		if err != nil {
			metric.FeatureType = domain.FeatureTypeText
			return metric
		}
		metric.KLDivergence = &kl
		metric.DriftFlag = kl > KLDriftThreshold
	}

	return metric
}

// BuildMetrics scores every listed column in order. Columns must already be
// validated as common to both datasets.
func BuildMetrics(runID uuid.UUID, columns []string, baselineRows, currentRows []map[string]string, bins int) []domain.FeatureMetric {
	metrics := make([]domain.FeatureMetric, 0, len(columns))
	for _, column := range columns {
		sample := FeatureSample{
			Name:     column,
			Baseline: columnValues(baselineRows, column),
			Current:  columnValues(currentRows, column),
		}
		metrics = append(metrics, BuildMetric(runID, sample, bins))
	}
	return metrics
}

func columnValues(rows []map[string]string, column string) []string {
	values := make([]string, 0, len(rows))
	for _, row := range rows {
		if v, ok := row[column]; ok {
			values = append(values, v)
		}
	}
	return values
}

func coerceNumeric(values []string) []float64 {
	coerced := make([]float64, 0, len(values))
	for _, v := range values {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			coerced = append(coerced, f)
		}
	}
	return coerced
}
