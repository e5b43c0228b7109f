package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/attendly/attendly/internal/metrics"
)

// Alerter raises out-of-band alerts for critical-level suspicious activity.
// Implementations must never block the flagging path for long; delivery
// failures are reported through logs and metrics only.
type Alerter interface {
	RaiseCritical(ctx context.Context, activity *SuspiciousActivity)
}

// LogAlerter emits critical alerts to the structured log and, when a webhook
// URL is configured, to an external notification endpoint.
type LogAlerter struct {
	webhookURL string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewLogAlerter creates an alerter. webhookURL may be empty to disable
// webhook delivery.
func NewLogAlerter(webhookURL string, logger *zap.Logger) *LogAlerter {
	return &LogAlerter{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With(zap.String("component", "fraud_alerter")),
	}
}

// RaiseCritical records the alert and posts it to the webhook if configured
func (a *LogAlerter) RaiseCritical(ctx context.Context, activity *SuspiciousActivity) {
	metrics.RecordCriticalAlert(string(activity.ActivityType))

	a.logger.Error("Critical fraud alert",
		zap.String("activity_id", activity.ID),
		zap.String("guest_id", activity.GuestID),
		zap.String("activity_type", string(activity.ActivityType)),
		zap.Float64("risk_score", activity.RiskScore),
		zap.String("description", activity.Description),
	)

	if a.webhookURL == "" {
		return
	}

	payload, err := json.Marshal(activity)
	if err != nil {
		a.logger.Warn("Failed to encode alert payload", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(payload))
	if err != nil {
		a.logger.Warn("Failed to build alert webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Warn("Alert webhook delivery failed", zap.Error(err))
		return
	}
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		a.logger.Warn("Alert webhook returned non-success status",
			zap.Int("status", resp.StatusCode))
	}
}
