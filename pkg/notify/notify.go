// Package notify implements the notification sink that the Announce
// operation pushes to for every accepted/rejected registration.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Event is a fire-and-forget notification payload. Sink errors are logged
// but never surfaced to the caller; the state transition has already
// succeeded by the time Emit is called.
type Event struct {
	Type           string    `json:"type"`
	SchoolID       int64     `json:"school_id"`
	RegistrationID int64     `json:"registration_id"`
	Recipient      string    `json:"recipient"`
	Subject        string    `json:"subject"`
	OccurredAt     time.Time `json:"occurred_at"`
}

const (
	EventPasswordResetRequested = "password_reset_requested"
	EventRegistrationAccepted   = "registration_accepted"
	EventRegistrationRejected   = "registration_rejected"
)

// Sink delivers notification events. Delivery failures must not block the
// caller's state transition.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// LogSink records events through the structured logger. It is the default
// sink when no webhook is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Emit logs the event at info level.
func (s *LogSink) Emit(_ context.Context, event Event) {
	s.logger.Info("notification emitted",
		zap.String("type", event.Type),
		zap.Int64("school_id", event.SchoolID),
		zap.Int64("registration_id", event.RegistrationID),
		zap.String("recipient", event.Recipient),
	)
}

// WebhookSink posts events as JSON to a configured URL, falling back to
// logging the failure. It never returns an error to the caller.
type WebhookSink struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookSink constructs a WebhookSink.
func NewWebhookSink(url string, logger *zap.Logger) *WebhookSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// Emit posts the event body; delivery errors are logged, not returned.
func (s *WebhookSink) Emit(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to encode notification event", zap.Error(err))
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		s.logger.Warn("failed to build notification request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("notification delivery failed", zap.Error(err), zap.String("type", event.Type))
		return
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 300 {
		s.logger.Warn("notification sink returned non-2xx", zap.Int("status", resp.StatusCode), zap.String("type", event.Type))
	}
}
