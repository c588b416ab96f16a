package drift

import (
	"fmt"
	"sort"
	"strings"

	"github.com/driftwatch/driftwatch/internal/domain"

	"github.com/google/uuid"
)

// ValidateHeaders enforces the fail-fast guard: baseline and current headers
// must be set-equal before a run may leave pending. Column order may differ.
func ValidateHeaders(baseline, current []string) error {
	missing := missingColumns(baseline, current)
	extra := missingColumns(current, baseline)
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing from current: %s", strings.Join(missing, ", ")))
	}
	if len(extra) > 0 {
		parts = append(parts, fmt.Sprintf("missing from baseline: %s", strings.Join(extra, ", ")))
	}
	return fmt.Errorf("%w: dataset headers do not match (%s)", ErrValidation, strings.Join(parts, "; "))
}

func missingColumns(want, have []string) []string {
	present := make(map[string]struct{}, len(have))
	for _, h := range have {
		present[h] = struct{}{}
	}
	var missing []string
	for _, w := range want {
		if _, ok := present[w]; !ok {
			missing = append(missing, w)
		}
	}
	sort.Strings(missing)
	return missing
}

// Result carries everything a completed scoring pass produces.
type Result struct {
	Metrics    []domain.FeatureMetric
	DSI        float64
	DriftRatio float64
	Summary    string
}

// Score runs the full pipeline for one run: one metric per shared column,
// folded into DSI and drift ratio. Callers must have validated headers first;
// Score revalidates to keep the invariant local.
func Score(runID uuid.UUID, baselineHeaders, currentHeaders []string, baselineRows, currentRows []map[string]string, bins int) (Result, error) {
	if err := ValidateHeaders(baselineHeaders, currentHeaders); err != nil {
		return Result{}, err
	}
	if len(baselineRows) == 0 || len(currentRows) == 0 {
		return Result{}, fmt.Errorf("%w: both datasets must contain rows", ErrValidation)
	}

	metrics := BuildMetrics(runID, baselineHeaders, baselineRows, currentRows, bins)
	dsi, ratio := Aggregate(metrics)

	return Result{
		Metrics:    metrics,
		DSI:        dsi,
		DriftRatio: ratio,
		Summary:    Summarize(metrics, dsi, ratio),
	}, nil
}

// Summarize renders the one-line run summary shown on dashboards.
func Summarize(metrics []domain.FeatureMetric, dsi, ratio float64) string {
	scored := 0
	flagged := 0
	for _, m := range metrics {
		if m.Scored() {
			scored++
			if m.DriftFlag {
				flagged++
			}
		}
	}
	return fmt.Sprintf("%d of %d scored features drifted (DSI %.1f, drift ratio %.2f)", flagged, scored, dsi, ratio)
}
