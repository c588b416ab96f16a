package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AlertSeverity grades how far aggregate drift exceeded configured thresholds.
type AlertSeverity string

const (
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// AlertTypeDrift is the only alert type this service emits.
const AlertTypeDrift = "drift"

// Alert records a threshold breach for a completed drift run. Write-once.
type Alert struct {
	ID         uuid.UUID     `json:"id"`
	ProjectID  uuid.UUID     `json:"project_id"`
	Type       string        `json:"type"`
	Severity   AlertSeverity `json:"severity"`
	Title      string        `json:"title"`
	Message    string        `json:"message"`
	DriftRunID uuid.UUID     `json:"drift_run_id"`
	DSI        float64       `json:"dsi"`
	DriftRatio float64       `json:"drift_ratio"`
	CreatedAt  time.Time     `json:"created_at"`
}

// alertPayload mirrors the payload_json layout stored in Postgres.
type alertPayload struct {
	DriftRunID uuid.UUID `json:"drift_run_id"`
	DSI        float64   `json:"dsi"`
	DriftRatio float64   `json:"drift_ratio"`
}

// PayloadToJSON marshals the triggering run reference for storage.
func (a Alert) PayloadToJSON() (json.RawMessage, error) {
	return json.Marshal(alertPayload{
		DriftRunID: a.DriftRunID,
		DSI:        a.DSI,
		DriftRatio: a.DriftRatio,
	})
}

// AlertPayloadFromJSON hydrates the stored payload back onto an alert.
func AlertPayloadFromJSON(data []byte, alert *Alert) error {
	if len(data) == 0 {
		return nil
	}
	var payload alertPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	alert.DriftRunID = payload.DriftRunID
	alert.DSI = payload.DSI
	alert.DriftRatio = payload.DriftRatio
	return nil
}
