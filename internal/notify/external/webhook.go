// Package external provides webhook-based approval notification sinks,
// adapted from this codebase's Slack/Discord notifier shape down to a
// single generic JSON webhook POST.
package external

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/personafy/personafy-core/internal/vaulttypes"
)

// WebhookConfig configures a generic JSON webhook sink.
type WebhookConfig struct {
	URL      string
	Username string
}

// WebhookNotifier posts an approval-pending alert as a JSON payload.
type WebhookNotifier struct {
	config WebhookConfig
	client *http.Client
}

// NewWebhookNotifier builds a notifier from config.
func NewWebhookNotifier(config WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Username   string   `json:"username,omitempty"`
	Text       string   `json:"text"`
	ApprovalID string   `json:"approvalId"`
	AgentID    string   `json:"agentId"`
	Persona    string   `json:"persona"`
	Fields     []string `json:"fields"`
}

// Notify delivers message about a to the configured webhook URL.
func (w *WebhookNotifier) Notify(message string, a *vaulttypes.Approval) error {
	if w.config.URL == "" {
		return fmt.Errorf("webhook notifier: no URL configured")
	}
	payload := webhookPayload{
		Username:   w.config.Username,
		Text:       message,
		ApprovalID: a.ID,
		AgentID:    a.Request.AgentID,
		Persona:    a.Request.Persona,
		Fields:     a.Request.Fields,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	resp, err := w.client.Post(w.config.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
