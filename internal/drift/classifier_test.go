package drift

import (
	"fmt"
	"testing"

	"github.com/driftwatch/driftwatch/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFeatureNumeric(t *testing.T) {
	baseline := []string{"1", "2.5", "3", "4.1"}
	current := []string{"5", "6", "7.2", "8"}

	assert.Equal(t, domain.FeatureTypeNumeric, ClassifyFeature(baseline, current))
}

func TestClassifyFeatureMostlyNumericTolerance(t *testing.T) {
	// One junk value in ten keeps the parseable fraction above 0.8.
	values := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "n/a"}

	assert.Equal(t, domain.FeatureTypeNumeric, ClassifyValues(values))
}

func TestClassifyFeatureCategorical(t *testing.T) {
	baseline := []string{"red", "green", "red", "blue", "red", "green"}
	current := []string{"blue", "blue", "red", "green", "blue", "red"}

	assert.Equal(t, domain.FeatureTypeCategorical, ClassifyFeature(baseline, current))
}

func TestClassifyFeatureText(t *testing.T) {
	values := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		values = append(values, fmt.Sprintf("free form comment %d", i))
	}

	assert.Equal(t, domain.FeatureTypeText, ClassifyValues(values))
}

func TestClassifyFeatureEmptySampleIsCategorical(t *testing.T) {
	assert.Equal(t, domain.FeatureTypeCategorical, ClassifyFeature(nil, nil))
	assert.Equal(t, domain.FeatureTypeCategorical, ClassifyValues([]string{}))
}
