package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Severity grades a notification
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Subjects used by the rollback orchestrator. Callers and alert routing
// match on these exact substrings.
const (
	SubjectRollbackInitiated = "Rollback Initiated"
	SubjectRollbackSucceeded = "Rollback Succeeded"
	SubjectRollbackFailed    = "Rollback Failed"
)

// Config holds webhook notifier settings
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
}

// Notifier publishes human-readable status messages to a Slack-compatible
// webhook. Delivery is best effort: failures are logged and swallowed so a
// notification outage can never block or fail a rollback.
type Notifier struct {
	webhookURL string
	channel    string
	username   string
	client     *http.Client
	logger     zerolog.Logger
}

// webhookPayload is the JSON payload sent to the webhook
type webhookPayload struct {
	Channel  string `json:"channel,omitempty"`
	Username string `json:"username,omitempty"`
	Text     string `json:"text"`
}

// NewNotifier creates a webhook notifier. An empty webhook URL degrades to
// log-only delivery.
func NewNotifier(config Config, logger zerolog.Logger) *Notifier {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Notifier{
		webhookURL: config.WebhookURL,
		channel:    config.Channel,
		username:   config.Username,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "notify").Logger(),
	}
}

// SetClient sets a custom HTTP client (useful for testing)
func (n *Notifier) SetClient(client *http.Client) {
	n.client = client
}

// Notify publishes a message. It never returns an error to the caller.
func (n *Notifier) Notify(ctx context.Context, severity Severity, subject, body string, fields map[string]string) {
	text := formatMessage(severity, subject, body, fields)

	n.logger.Info().
		Str("severity", string(severity)).
		Str("subject", subject).
		Msg("Publishing notification")

	if n.webhookURL == "" {
		n.logger.Debug().Str("subject", subject).Msg("No webhook configured, notification logged only")
		return
	}

	payload := webhookPayload{
		Channel:  n.channel,
		Username: n.username,
		Text:     text,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error().Err(err).Str("subject", subject).Msg("Failed to marshal notification payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(data))
	if err != nil {
		n.logger.Error().Err(err).Str("subject", subject).Msg("Failed to build notification request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error().Err(err).Str("subject", subject).Msg("Failed to deliver notification")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Error().
			Int("status", resp.StatusCode).
			Str("subject", subject).
			Msg("Notification endpoint returned non-2xx status")
		return
	}

	n.logger.Debug().Str("subject", subject).Msg("Notification delivered")
}

// formatMessage renders the notification text with sorted context fields
func formatMessage(severity Severity, subject, body string, fields map[string]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", strings.ToUpper(string(severity)), subject)
	if body != "" {
		sb.WriteString("\n")
		sb.WriteString(body)
	}

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "\n%s: %s", k, fields[k])
		}
	}

	return sb.String()
}
