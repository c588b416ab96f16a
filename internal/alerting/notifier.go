package alerting

import (
	"context"

	"github.com/driftwatch/driftwatch/internal/domain"

	"go.uber.org/zap"
)

// Notifier hands a triggered alert to an external delivery channel. Delivery
// failures must never fail or roll back the drift run that produced the
// alert; dispatchers log and swallow them.
type Notifier interface {
	Notify(ctx context.Context, alert domain.Alert, target string) error
}

// LogNotifier is the in-process fallback channel; it writes alerts to the
// structured log instead of an external transport.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by the service logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, alert domain.Alert, target string) error {
	n.logger.Warn("drift alert",
		zap.String("project_id", alert.ProjectID.String()),
		zap.String("drift_run_id", alert.DriftRunID.String()),
		zap.String("severity", string(alert.Severity)),
		zap.Float64("dsi", alert.DSI),
		zap.Float64("drift_ratio", alert.DriftRatio),
		zap.String("target", target),
		zap.String("message", alert.Message),
	)
	return nil
}
