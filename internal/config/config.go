// Package config loads process settings from the environment and the search criteria
// from a json5 file.
package config

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/sglre6355/ferry-watch/internal/domain"
)

// Notification backends.
const (
	BackendTelegram = "telegram"
	BackendDiscord  = "discord"
	BackendEmail    = "email"
)

// Disabled turns off an optional path setting such as LOG_DIR or LOCK_FILE.
const Disabled = "-"

// Config holds everything read from the environment.
type Config struct {
	NotifyBackend string `env:"NOTIFY_BACKEND" envDefault:"telegram"`
	DryRun        bool   `env:"DRY_RUN"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"TELEGRAM_CHAT_ID"`
	TelegramAPIURL   string `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`

	DiscordToken     string `env:"DISCORD_TOKEN"`
	DiscordChannelID string `env:"DISCORD_CHANNEL_ID"`

	SMTPHost     string   `env:"SMTP_HOST"`
	SMTPPort     int      `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string   `env:"SMTP_USERNAME"`
	SMTPPassword string   `env:"SMTP_PASSWORD"`
	EmailFrom    string   `env:"EMAIL_FROM"`
	EmailTo      []string `env:"EMAIL_TO" envSeparator:","`

	CriteriaFile string `env:"CRITERIA_FILE" envDefault:"criteria.json5"`
	ArtifactDir  string `env:"ARTIFACT_DIR" envDefault:"logs"`
	LogDir       string `env:"LOG_DIR" envDefault:"logs"`
	LogVerbose   bool   `env:"LOG_VERBOSE"`

	Headless     bool   `env:"HEADLESS" envDefault:"true"`
	BrowserWSURL string `env:"BROWSER_WS_URL"`

	NavigationTimeout  time.Duration `env:"NAVIGATION_TIMEOUT" envDefault:"45s"`
	StepTimeout        time.Duration `env:"STEP_TIMEOUT" envDefault:"15s"`
	ResultsTimeout     time.Duration `env:"RESULTS_TIMEOUT" envDefault:"30s"`
	NotifyTimeout      time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"30s"`
	SettleDelay        time.Duration `env:"SETTLE_DELAY" envDefault:"5s"`
	FieldDelay         time.Duration `env:"FIELD_DELAY" envDefault:"1s"`
	ResultsSettleDelay time.Duration `env:"RESULTS_SETTLE_DELAY" envDefault:"8s"`

	DatabaseDSN    string `env:"DATABASE_DSN"`
	PushgatewayURL string `env:"PUSHGATEWAY_URL"`
	LockFile       string `env:"LOCK_FILE"`
}

// Load parses the environment. Failures are reported as domain.ConfigurationError.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, domain.ConfigurationError{Err: err}
	}
	cfg.NotifyBackend = strings.ToLower(strings.TrimSpace(cfg.NotifyBackend))
	return cfg, nil
}

// Validate ensures the settings are coherent and that the selected notification
// backend has its credentials. Dry runs need no credentials.
func (c Config) Validate() error {
	durations := []struct {
		field string
		value time.Duration
	}{
		{"NAVIGATION_TIMEOUT", c.NavigationTimeout},
		{"STEP_TIMEOUT", c.StepTimeout},
		{"RESULTS_TIMEOUT", c.ResultsTimeout},
		{"NOTIFY_TIMEOUT", c.NotifyTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return domain.ConfigurationError{Field: d.field, Err: errors.New("must be positive")}
		}
	}

	delays := []struct {
		field string
		value time.Duration
	}{
		{"SETTLE_DELAY", c.SettleDelay},
		{"FIELD_DELAY", c.FieldDelay},
		{"RESULTS_SETTLE_DELAY", c.ResultsSettleDelay},
	}
	for _, d := range delays {
		if d.value < 0 {
			return domain.ConfigurationError{Field: d.field, Err: errors.New("cannot be negative")}
		}
	}

	if c.BrowserWSURL != "" {
		u, err := url.Parse(c.BrowserWSURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss" && u.Scheme != "http" && u.Scheme != "https") {
			return domain.ConfigurationError{Field: "BROWSER_WS_URL", Err: fmt.Errorf("%q is not a DevTools endpoint", c.BrowserWSURL)}
		}
	}

	if strings.TrimSpace(c.CriteriaFile) == "" {
		return domain.ConfigurationError{Field: "CRITERIA_FILE", Err: errors.New("cannot be empty")}
	}

	switch c.NotifyBackend {
	case BackendTelegram, BackendDiscord, BackendEmail:
	default:
		return domain.ConfigurationError{
			Field: "NOTIFY_BACKEND",
			Err:   fmt.Errorf("unsupported backend %q (want telegram, discord or email)", c.NotifyBackend),
		}
	}

	if c.DryRun {
		return nil
	}
	return c.validateCredentials()
}

func (c Config) validateCredentials() error {
	required := func(field, value string) error {
		if strings.TrimSpace(value) == "" {
			return domain.ConfigurationError{Field: field, Err: errors.New("required for " + c.NotifyBackend + " notifications")}
		}
		return nil
	}

	switch c.NotifyBackend {
	case BackendTelegram:
		return errors.Join(
			required("TELEGRAM_BOT_TOKEN", c.TelegramBotToken),
			required("TELEGRAM_CHAT_ID", c.TelegramChatID),
		)
	case BackendDiscord:
		return errors.Join(
			required("DISCORD_TOKEN", c.DiscordToken),
			required("DISCORD_CHANNEL_ID", c.DiscordChannelID),
		)
	case BackendEmail:
		if err := errors.Join(
			required("SMTP_HOST", c.SMTPHost),
			required("EMAIL_FROM", c.EmailFrom),
			required("EMAIL_TO", strings.Join(c.EmailTo, "")),
		); err != nil {
			return err
		}
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			return domain.ConfigurationError{Field: "SMTP_PORT", Err: fmt.Errorf("%d is not a valid port", c.SMTPPort)}
		}
		if _, err := mail.ParseAddress(c.EmailFrom); err != nil {
			return domain.ConfigurationError{Field: "EMAIL_FROM", Err: fmt.Errorf("invalid address %q: %w", c.EmailFrom, err)}
		}
		for _, addr := range c.EmailTo {
			if _, err := mail.ParseAddress(strings.TrimSpace(addr)); err != nil {
				return domain.ConfigurationError{Field: "EMAIL_TO", Err: fmt.Errorf("invalid address %q: %w", addr, err)}
			}
		}
	}
	return nil
}

// LogDirEnabled reports whether a daily log file should be written.
func (c Config) LogDirEnabled() bool {
	return c.LogDir != "" && c.LogDir != Disabled
}
