// Package notify delivers reports to people: a chat webhook for new reports
// and e-mail for dispatches and backups.
package notify

import (
	"errors"
	"time"
)

// ErrNotConfigured is returned when a channel has no destination set.
var ErrNotConfigured = errors.New("notify: channel not configured")

// Config holds both channels. Empty WebhookURL or SMTP credentials disable
// the matching channel.
type Config struct {
	WebhookURL     string        `yaml:"webhook_url" json:"webhook_url"`
	WebhookTimeout time.Duration `yaml:"webhook_timeout" json:"webhook_timeout"`
	// WebhookRetries is the total number of attempts per message.
	WebhookRetries int `yaml:"webhook_retries" json:"webhook_retries"`

	SMTPHost string `yaml:"smtp_host" json:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port" json:"smtp_port"`
	// Username doubles as the From address.
	Username string   `yaml:"username" json:"username"`
	Password string   `yaml:"password" json:"-"`
	To       []string `yaml:"to" json:"to"`
}

// DefaultConfig targets Gmail SMTP with no credentials.
func DefaultConfig() Config {
	return Config{
		WebhookTimeout: 10 * time.Second,
		WebhookRetries: 3,
		SMTPHost:       "smtp.gmail.com",
		SMTPPort:       587,
	}
}
