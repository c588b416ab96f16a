package drift

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHeadersSetEqualityIgnoresOrder(t *testing.T) {
	require.NoError(t, ValidateHeaders([]string{"a", "b", "c"}, []string{"c", "a", "b"}))
}

func TestValidateHeadersMismatchFailsFast(t *testing.T) {
	err := ValidateHeaders([]string{"a", "b"}, []string{"a", "z"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "b")
	assert.Contains(t, err.Error(), "z")
}

func TestScoreIdempotent(t *testing.T) {
	runID := uuid.New()
	headers := []string{"age", "segment"}
	baseline := []map[string]string{
		{"age": "20", "segment": "a"},
		{"age": "25", "segment": "a"},
		{"age": "30", "segment": "b"},
		{"age": "35", "segment": "a"},
	}
	current := []map[string]string{
		{"age": "60", "segment": "b"},
		{"age": "65", "segment": "b"},
		{"age": "70", "segment": "b"},
		{"age": "75", "segment": "a"},
	}

	first, err := Score(runID, headers, headers, baseline, current, DefaultBinCount)
	require.NoError(t, err)
	second, err := Score(runID, headers, headers, baseline, current, DefaultBinCount)
	require.NoError(t, err)

	assert.Equal(t, first.Metrics, second.Metrics)
	assert.Equal(t, first.DSI, second.DSI)
	assert.Equal(t, first.DriftRatio, second.DriftRatio)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestScoreEmptyRowsRejected(t *testing.T) {
	headers := []string{"a"}
	_, err := Score(uuid.New(), headers, headers, nil, []map[string]string{{"a": "1"}}, DefaultBinCount)
	require.ErrorIs(t, err, ErrValidation)
}

func TestScoreBoundsHold(t *testing.T) {
	headers := []string{"x", "y", "label"}
	baseline := make([]map[string]string, 0, 40)
	current := make([]map[string]string, 0, 40)
	for i := 0; i < 40; i++ {
		baseline = append(baseline, map[string]string{
			"x": "1", "y": "2", "label": "a",
		})
		current = append(current, map[string]string{
			"x": "100", "y": "2", "label": "b",
		})
	}

	result, err := Score(uuid.New(), headers, headers, baseline, current, DefaultBinCount)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.DSI, 0.0)
	assert.LessOrEqual(t, result.DSI, 100.0)
	assert.GreaterOrEqual(t, result.DriftRatio, 0.0)
	assert.LessOrEqual(t, result.DriftRatio, 1.0)
	assert.Len(t, result.Metrics, 3)
}
