package alerting

import (
	"fmt"
	"strings"

	"github.com/driftwatch/driftwatch/internal/domain"
	"github.com/driftwatch/driftwatch/internal/drift"
)

// defaultTopFeatures bounds how many drifted features an alert message lists.
const defaultTopFeatures = 5

// Evaluator decides whether a completed drift run breaches its project's
// thresholds. It only decides and formats; delivery belongs to a Notifier.
type Evaluator struct {
	topFeatures int
}

// NewEvaluator creates an evaluator listing up to topFeatures drifted
// features per alert message.
func NewEvaluator(topFeatures int) *Evaluator {
	if topFeatures <= 0 {
		topFeatures = defaultTopFeatures
	}
	return &Evaluator{topFeatures: topFeatures}
}

// Evaluate returns the alert to emit for the run, or false when aggregate
// drift stays within the configured thresholds. At most one alert per run.
func (e *Evaluator) Evaluate(run domain.DriftRun, config domain.ThresholdConfig) (domain.Alert, bool) {
	if run.Status != domain.DriftRunStatusCompleted {
		return domain.Alert{}, false
	}

	dsiExceeded := run.DSI > config.DSIThreshold
	ratioExceeded := run.DriftRatio > config.DriftRatioThreshold
	if !dsiExceeded && !ratioExceeded {
		return domain.Alert{}, false
	}

	severity := domain.AlertSeverityWarning
	if run.DSI > config.DSIThreshold*2 {
		severity = domain.AlertSeverityCritical
	}

	return domain.Alert{
		ProjectID:  run.ProjectID,
		Type:       domain.AlertTypeDrift,
		Severity:   severity,
		Title:      fmt.Sprintf("Data drift detected (DSI %.1f)", run.DSI),
		Message:    e.buildMessage(run),
		DriftRunID: run.ID,
		DSI:        run.DSI,
		DriftRatio: run.DriftRatio,
	}, true
}

func (e *Evaluator) buildMessage(run domain.DriftRun) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Drift run %s scored DSI %.1f with drift ratio %.2f.", run.ID, run.DSI, run.DriftRatio)

	features := drift.DriftedFeatures(run.Metrics)
	if len(features) == 0 {
		return b.String()
	}
	if len(features) > e.topFeatures {
		features = features[:e.topFeatures]
	}

	b.WriteString(" Top drifted features:")
	for i, feature := range features {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, " %s (%.1f)", feature.Name, feature.Score)
	}
	return b.String()
}
