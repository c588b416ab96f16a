package domain

import (
	"github.com/google/uuid"
)

// FeatureMetric is the result of scoring one feature of a drift run. Exactly
// one of PSI and KLDivergence is set for scored features; text features carry
// neither but are kept in the output rather than silently dropped. Immutable
// once computed; belongs to exactly one run.
type FeatureMetric struct {
	DriftRunID   uuid.UUID   `json:"drift_run_id"`
	FeatureName  string      `json:"feature_name"`
	FeatureType  FeatureType `json:"feature_type"`
	PSI          *float64    `json:"psi,omitempty"`
	KLDivergence *float64    `json:"kl_divergence,omitempty"`
	DriftFlag    bool        `json:"drift_flag"`
}

// Scored reports whether the metric carries a divergence score.
func (m FeatureMetric) Scored() bool {
	return m.PSI != nil || m.KLDivergence != nil
}

// Score returns the raw divergence value for scored metrics.
func (m FeatureMetric) Score() (float64, bool) {
	if m.PSI != nil {
		return *m.PSI, true
	}
	if m.KLDivergence != nil {
		return *m.KLDivergence, true
	}
	return 0, false
}
