package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/raysh454/qssage/internal/logging"
	"github.com/raysh454/qssage/internal/store"
)

// Webhook posts Discord-style {"content": "..."} messages.
type Webhook struct {
	endpoint string
	client   *http.Client
	retries  int
	backoff  time.Duration
	logger   logging.Logger
}

// NewWebhook builds a Webhook from cfg. client may be nil.
func NewWebhook(cfg Config, client *http.Client, logger logging.Logger) *Webhook {
	if client == nil {
		timeout := cfg.WebhookTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	retries := cfg.WebhookRetries
	if retries <= 0 {
		retries = 1
	}
	return &Webhook{
		endpoint: cfg.WebhookURL,
		client:   client,
		retries:  retries,
		backoff:  time.Second,
		logger:   logging.OrNop(logger).With(logging.F("component", "webhook")),
	}
}

// Enabled reports whether an endpoint is configured.
func (w *Webhook) Enabled() bool { return w != nil && w.endpoint != "" }

// NotifyReport announces a newly stored report.
func (w *Webhook) NotifyReport(ctx context.Context, r *store.ReportRecord) error {
	location := r.Location
	if location == "" {
		location = "unknown"
	}
	content := fmt.Sprintf("🚨 **New phishing report** 🚨\n🔗 URL: %s\n📍 Location: %s\n🕒 Detected: %s",
		r.URL, location, r.DetectedAt.Format(time.RFC3339))
	if r.Risk != "" {
		content += fmt.Sprintf("\n⚠️ Risk: %s (score %d)", r.Risk, r.Score)
	}
	return w.Send(ctx, content)
}

// Send posts content, retrying 5xx and transport errors with exponential backoff.
func (w *Webhook) Send(ctx context.Context, content string) error {
	if !w.Enabled() {
		return ErrNotConfigured
	}
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < w.retries; attempt++ {
		if attempt > 0 {
			// 1s, 2s, 4s, ...
			wait := w.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		retry, err := w.post(ctx, body)
		if err == nil {
			w.logger.Debug("webhook delivered", logging.F("attempt", attempt+1))
			return nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	w.logger.Warn("webhook delivery failed", logging.Err(lastErr))
	return lastErr
}

func (w *Webhook) post(ctx context.Context, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("webhook: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return true, fmt.Errorf("webhook: server error: %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("webhook: client error: %d", resp.StatusCode)
	}
}
