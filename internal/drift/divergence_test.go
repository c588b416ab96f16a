package drift

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPSIIdenticalSamplesIsZero(t *testing.T) {
	values := []float64{1.2, 3.4, 5.6, 7.8, 9.1, 2.3, 4.5, 6.7}

	psi, err := PSI(values, values, DefaultBinCount)
	require.NoError(t, err)
	assert.InDelta(t, 0, psi, 1e-12)
}

func TestPSIConstantSampleIsZero(t *testing.T) {
	constant := []float64{1, 1, 1, 1, 1}

	psi, err := PSI(constant, constant, DefaultBinCount)
	require.NoError(t, err)
	assert.Equal(t, 0.0, psi)
}

func TestPSINonNegativeAndFinite(t *testing.T) {
	baseline := []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8}
	current := []float64{10, 11, 12, 13, 14, 15}

	psi, err := PSI(baseline, current, DefaultBinCount)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, psi, 0.0)
	assert.False(t, math.IsNaN(psi))
	assert.False(t, math.IsInf(psi, 0))
}

func TestPSIShiftedDistributionScoresHigh(t *testing.T) {
	baseline := make([]float64, 0, 100)
	current := make([]float64, 0, 100)
	for i := 0; i < 100; i++ {
		baseline = append(baseline, float64(i%10))
		current = append(current, float64(i%10)+50)
	}

	psi, err := PSI(baseline, current, DefaultBinCount)
	require.NoError(t, err)
	assert.Greater(t, psi, PSIDriftThreshold)
}

func TestPSIEmptySequenceFails(t *testing.T) {
	_, err := PSI(nil, []float64{1, 2}, DefaultBinCount)
	require.ErrorIs(t, err, ErrEmptySample)

	_, err = PSI([]float64{1, 2}, nil, DefaultBinCount)
	require.ErrorIs(t, err, ErrEmptySample)
}

func TestPSIDeterministic(t *testing.T) {
	baseline := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	current := []float64{2, 2, 3, 3, 4, 4, 9, 9, 9}

	first, err := PSI(baseline, current, DefaultBinCount)
	require.NoError(t, err)
	second, err := PSI(baseline, current, DefaultBinCount)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestKLIdenticalDistributionsIsZero(t *testing.T) {
	values := []string{"a", "b", "a", "c", "b", "a"}

	kl, err := KLDivergence(values, values)
	require.NoError(t, err)
	assert.InDelta(t, 0, kl, 1e-9)
}

func TestKLMajorityFlipExceedsThreshold(t *testing.T) {
	baseline := []string{"a", "a", "a", "b"}
	current := []string{"b", "b", "b", "a"}

	kl, err := KLDivergence(baseline, current)
	require.NoError(t, err)
	assert.Greater(t, kl, KLDriftThreshold)
}

func TestKLDisjointCategoriesFinite(t *testing.T) {
	baseline := []string{"x", "x", "y"}
	current := []string{"z", "z", "z"}

	kl, err := KLDivergence(baseline, current)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(kl))
	assert.False(t, math.IsInf(kl, 0))
	assert.Greater(t, kl, 0.0)
}

func TestKLEmptySequenceFails(t *testing.T) {
	_, err := KLDivergence(nil, []string{"a"})
	require.ErrorIs(t, err, ErrEmptySample)
}
