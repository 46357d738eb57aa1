// Package notify fans an approval-pending alert out to whichever channels
// the host enabled, adapted from this codebase's notification manager:
// desktop toast, terminal title flash, and an external webhook sink,
// collapsed from "supervisor needs input" to "an Approval needs a human."
package notify

import (
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/go-toast/toast"

	"github.com/personafy/personafy-core/internal/vaulttypes"
)

var logger = log.New(log.Writer(), "[NOTIFY] ", log.LstdFlags)

// Config controls which channels a Manager fans approval alerts out to.
type Config struct {
	AppID          string
	EnableToast    bool
	EnableTerminal bool
	Webhook        WebhookSink // optional external sink; nil disables it
}

// WebhookSink delivers an approval-pending alert to an external system
// (Slack/Discord/email in the wider notifications corpus; here reduced to
// the single seam a host needs to plug one in).
type WebhookSink interface {
	Notify(message string, a *vaulttypes.Approval) error
}

// Manager fans ApprovalPending alerts out across configured channels.
type Manager struct {
	mu      sync.RWMutex
	appID   string
	toast   bool
	term    bool
	webhook WebhookSink
	enabled bool
}

// NewManager builds a Manager from cfg.
func NewManager(cfg Config) *Manager {
	if cfg.AppID == "" {
		cfg.AppID = "personafy"
	}
	m := &Manager{
		appID:   cfg.AppID,
		toast:   cfg.EnableToast,
		term:    cfg.EnableTerminal,
		webhook: cfg.Webhook,
		enabled: cfg.EnableToast || cfg.EnableTerminal || cfg.Webhook != nil,
	}
	logger.Printf("toast=%v terminal=%v webhook=%v", cfg.EnableToast, cfg.EnableTerminal, cfg.Webhook != nil)
	return m
}

// NotifyApprovalPending fans an alert out for a newly enqueued Approval.
func (m *Manager) NotifyApprovalPending(a *vaulttypes.Approval) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.enabled {
		return nil
	}

	message := fmt.Sprintf("approval needed: agent %s requests %s.%v", a.Request.AgentID, a.Request.Persona, a.Request.Fields)

	var errs []error
	if m.toast {
		if err := m.showToast("Personafy approval needed", message); err != nil {
			logger.Printf("toast failed: %v", err)
			errs = append(errs, err)
		}
	}
	if m.term {
		if err := flashTerminalTitle(message); err != nil {
			logger.Printf("terminal flash failed: %v", err)
			errs = append(errs, err)
		}
	}
	if m.webhook != nil {
		if err := m.webhook.Notify(message, a); err != nil {
			logger.Printf("webhook notify failed: %v", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("some notification channels failed: %v", errs)
	}
	return nil
}

func (m *Manager) showToast(title, message string) error {
	if runtime.GOOS != "windows" {
		return fmt.Errorf("toast notifications only supported on Windows")
	}
	notification := toast.Notification{
		AppID:   m.appID,
		Title:   title,
		Message: message,
		Audio:   toast.Default,
	}
	return notification.Push()
}

func flashTerminalTitle(message string) error {
	if runtime.GOOS == "windows" {
		return nil // title escape sequence below is POSIX-terminal specific
	}
	fmt.Printf("\033]0;%s\007", message)
	return nil
}
