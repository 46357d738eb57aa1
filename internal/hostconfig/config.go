// Package hostconfig loads a host process's YAML configuration, adapted
// from this codebase's teams.yaml TeamsConfig loading pattern, with
// environment-variable overrides for secrets following the flag+env
// fallback style of the example CLI entrypoint.
package hostconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/personafy/personafy-core/internal/vaulttypes"
)

// Config is a host process's top-level configuration, loaded from
// personafy.yaml and overridable by environment variables for secrets.
type Config struct {
	StateDir          string             `yaml:"stateDir"`
	DefaultPosture    vaulttypes.Posture `yaml:"defaultPosture"`
	ApprovalTTLMs     int64              `yaml:"approvalTtlMs"`
	Retention         RetentionConfig    `yaml:"retention"`
	Notifications     NotificationConfig `yaml:"notifications"`
	AuditMirrorDBPath string             `yaml:"auditMirrorDbPath"`

	// Passphrase is never read from YAML — only from the
	// PERSONAFY_PASSPHRASE environment variable — so it never lands in a
	// config file on disk.
	Passphrase string `yaml:"-"`
}

// RetentionConfig configures the maintenance sweep's retention policy.
type RetentionConfig struct {
	AuditRetentionMs int64 `yaml:"auditRetentionMs"`
	KeepApprovals    int   `yaml:"keepApprovals"`
}

// NotificationConfig configures which approval-pending alert channels a
// host enables.
type NotificationConfig struct {
	AppID          string `yaml:"appId"`
	EnableToast    bool   `yaml:"enableToast"`
	EnableTerminal bool   `yaml:"enableTerminal"`
	WebhookURL     string `yaml:"webhookUrl"`
}

// Default returns a Config with sane defaults for a local development host.
func Default() Config {
	return Config{
		StateDir:       "./personafy-state",
		DefaultPosture: vaulttypes.PostureGuarded,
		ApprovalTTLMs:  7 * 24 * 60 * 60 * 1000,
		Retention: RetentionConfig{
			AuditRetentionMs: 90 * 24 * 60 * 60 * 1000,
			KeepApprovals:    500,
		},
		Notifications: NotificationConfig{
			AppID:          "personafy",
			EnableToast:    true,
			EnableTerminal: true,
		},
	}
}

// Load reads YAML config from path, falling back to Default() values for
// anything the file omits, then applies the PERSONAFY_PASSPHRASE and
// PERSONAFY_WEBHOOK_URL environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if !cfg.DefaultPosture.Valid() {
		cfg.DefaultPosture = vaulttypes.PostureGuarded
	}

	if v := os.Getenv("PERSONAFY_PASSPHRASE"); v != "" {
		cfg.Passphrase = v
	}
	if v := os.Getenv("PERSONAFY_WEBHOOK_URL"); v != "" {
		cfg.Notifications.WebhookURL = v
	}
	return cfg, nil
}
