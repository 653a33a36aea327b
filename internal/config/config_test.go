package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sglre6355/ferry-watch/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, BackendTelegram, cfg.NotifyBackend)
	require.Equal(t, "criteria.json5", cfg.CriteriaFile)
	require.Equal(t, "logs", cfg.ArtifactDir)
	require.True(t, cfg.Headless)
	require.Equal(t, 45*time.Second, cfg.NavigationTimeout)
	require.Equal(t, 15*time.Second, cfg.StepTimeout)
	require.Equal(t, 30*time.Second, cfg.ResultsTimeout)
	require.Equal(t, 5*time.Second, cfg.SettleDelay)
	require.Equal(t, time.Second, cfg.FieldDelay)
	require.Equal(t, 8*time.Second, cfg.ResultsSettleDelay)
	require.Equal(t, 587, cfg.SMTPPort)
	require.True(t, cfg.LogDirEnabled())
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("NOTIFY_BACKEND", " Email ")
	t.Setenv("EMAIL_TO", "a@example.test,b@example.test")
	t.Setenv("RESULTS_TIMEOUT", "1m")
	t.Setenv("LOG_DIR", Disabled)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, BackendEmail, cfg.NotifyBackend)
	require.Equal(t, []string{"a@example.test", "b@example.test"}, cfg.EmailTo)
	require.Equal(t, time.Minute, cfg.ResultsTimeout)
	require.False(t, cfg.LogDirEnabled())
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("STEP_TIMEOUT", "soon")

	_, err := Load()
	var cfgErr domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func validConfig() Config {
	return Config{
		NotifyBackend:     BackendTelegram,
		TelegramBotToken:  "123:abc",
		TelegramChatID:    "42",
		SMTPPort:          587,
		CriteriaFile:      "criteria.json5",
		NavigationTimeout: 45 * time.Second,
		StepTimeout:       15 * time.Second,
		ResultsTimeout:    30 * time.Second,
		NotifyTimeout:     30 * time.Second,
		SettleDelay:       5 * time.Second,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing telegram token", mutate: func(c *Config) { c.TelegramBotToken = "" }, wantField: "TELEGRAM_BOT_TOKEN"},
		{name: "missing telegram chat", mutate: func(c *Config) { c.TelegramChatID = " " }, wantField: "TELEGRAM_CHAT_ID"},
		{name: "dry run needs no credentials", mutate: func(c *Config) { c.TelegramBotToken, c.TelegramChatID, c.DryRun = "", "", true }},
		{name: "unknown backend", mutate: func(c *Config) { c.NotifyBackend = "sms" }, wantField: "NOTIFY_BACKEND"},
		{
			name:      "discord without channel",
			mutate:    func(c *Config) { c.NotifyBackend, c.DiscordToken = BackendDiscord, "tok" },
			wantField: "DISCORD_CHANNEL_ID",
		},
		{
			name: "discord complete",
			mutate: func(c *Config) {
				c.NotifyBackend, c.DiscordToken, c.DiscordChannelID = BackendDiscord, "tok", "123"
			},
		},
		{
			name: "email complete",
			mutate: func(c *Config) {
				c.NotifyBackend, c.SMTPHost, c.EmailFrom = BackendEmail, "smtp.example.test", "watch@example.test"
				c.EmailTo = []string{"me@example.test"}
			},
		},
		{
			name: "email bad recipient",
			mutate: func(c *Config) {
				c.NotifyBackend, c.SMTPHost, c.EmailFrom = BackendEmail, "smtp.example.test", "watch@example.test"
				c.EmailTo = []string{"not-an-address"}
			},
			wantField: "EMAIL_TO",
		},
		{name: "zero step timeout", mutate: func(c *Config) { c.StepTimeout = 0 }, wantField: "STEP_TIMEOUT"},
		{name: "negative settle", mutate: func(c *Config) { c.FieldDelay = -time.Second }, wantField: "FIELD_DELAY"},
		{name: "bad browser url", mutate: func(c *Config) { c.BrowserWSURL = "chrome:9222" }, wantField: "BROWSER_WS_URL"},
		{name: "remote browser", mutate: func(c *Config) { c.BrowserWSURL = "ws://127.0.0.1:9222/devtools/browser/abc" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}

			var cfgErr domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			require.Equal(t, tt.wantField, cfgErr.Field)
			require.Equal(t, "configuration", domain.ErrorLabel(err))
		})
	}
}
