package drift

import (
	"testing"

	"github.com/driftwatch/driftwatch/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestAggregateDriftRatioExact(t *testing.T) {
	metrics := make([]domain.FeatureMetric, 0, 10)
	for i := 0; i < 10; i++ {
		metrics = append(metrics, domain.FeatureMetric{
			FeatureName: "f",
			FeatureType: domain.FeatureTypeNumeric,
			PSI:         floatPtr(0.05),
		})
	}
	metrics[0].PSI = floatPtr(0.5)
	metrics[0].DriftFlag = true
	metrics[3].PSI = floatPtr(0.3)
	metrics[3].DriftFlag = true
	metrics[7].PSI = floatPtr(0.9)
	metrics[7].DriftFlag = true

	_, ratio := Aggregate(metrics)
	assert.Equal(t, 0.3, ratio)
}

func TestAggregateDSIWithinBounds(t *testing.T) {
	metrics := []domain.FeatureMetric{
		{FeatureType: domain.FeatureTypeNumeric, PSI: floatPtr(5.0), DriftFlag: true},
		{FeatureType: domain.FeatureTypeCategorical, KLDivergence: floatPtr(3.0), DriftFlag: true},
	}

	dsi, ratio := Aggregate(metrics)
	// Both normalized scores cap at 100.
	assert.Equal(t, 100.0, dsi)
	assert.Equal(t, 1.0, ratio)
}

func TestAggregateNormalizationScales(t *testing.T) {
	metrics := []domain.FeatureMetric{
		{FeatureType: domain.FeatureTypeNumeric, PSI: floatPtr(0.1)},
		{FeatureType: domain.FeatureTypeCategorical, KLDivergence: floatPtr(0.1)},
	}

	dsi, _ := Aggregate(metrics)
	// psi*100=10 and kl*200=20 average to 15 on the common scale.
	assert.InDelta(t, 15.0, dsi, 1e-9)
}

func TestAggregateTextMetricsExcluded(t *testing.T) {
	metrics := []domain.FeatureMetric{
		{FeatureType: domain.FeatureTypeNumeric, PSI: floatPtr(0.4), DriftFlag: true},
		{FeatureType: domain.FeatureTypeText},
		{FeatureType: domain.FeatureTypeText},
	}

	dsi, ratio := Aggregate(metrics)
	assert.InDelta(t, 40.0, dsi, 1e-9)
	assert.Equal(t, 1.0, ratio)
}

func TestAggregateNoScoredMetrics(t *testing.T) {
	metrics := []domain.FeatureMetric{
		{FeatureType: domain.FeatureTypeText},
	}

	dsi, ratio := Aggregate(metrics)
	assert.Equal(t, 0.0, dsi)
	assert.Equal(t, 0.0, ratio)
}

func TestDriftedFeaturesSortedByScore(t *testing.T) {
	metrics := []domain.FeatureMetric{
		{FeatureName: "low", FeatureType: domain.FeatureTypeNumeric, PSI: floatPtr(0.25), DriftFlag: true},
		{FeatureName: "quiet", FeatureType: domain.FeatureTypeNumeric, PSI: floatPtr(0.01)},
		{FeatureName: "high", FeatureType: domain.FeatureTypeCategorical, KLDivergence: floatPtr(0.4), DriftFlag: true},
	}

	features := DriftedFeatures(metrics)

	require.Len(t, features, 2)
	assert.Equal(t, "high", features[0].Name)
	assert.InDelta(t, 80.0, features[0].Score, 1e-9)
	assert.Equal(t, "low", features[1].Name)
	assert.InDelta(t, 25.0, features[1].Score, 1e-9)
}
