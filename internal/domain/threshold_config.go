package domain

import (
	"time"

	"github.com/google/uuid"
)

// ThresholdConfig holds per-project alerting thresholds. It is maintained via
// the project settings surface and read-only to the drift engine.
type ThresholdConfig struct {
	ProjectID           uuid.UUID `json:"project_id"`
	DSIThreshold        float64   `json:"dsi_threshold"`
	DriftRatioThreshold float64   `json:"drift_ratio_threshold"`
	NotifyTarget        string    `json:"notify_target,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// DefaultThresholds returns the fallback configuration for projects that have
// not customized their thresholds.
func DefaultThresholds(projectID uuid.UUID, dsi, driftRatio float64) ThresholdConfig {
	return ThresholdConfig{
		ProjectID:           projectID,
		DSIThreshold:        dsi,
		DriftRatioThreshold: driftRatio,
		UpdatedAt:           time.Now(),
	}
}
