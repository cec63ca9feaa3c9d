package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "tokyosniper", cfg.App.Name)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, 6*time.Hour, cfg.Scheduler.FlightInterval)
	require.Equal(t, 12*time.Hour, cfg.Scheduler.StayInterval)
	require.Equal(t, "fallback", cfg.Fetch.Policy)
	require.Equal(t, 5*time.Minute, cfg.Fetch.GateTTL)
	require.Equal(t, []string{"skyscanner", "googleflights", "serpapi", "amadeus"}, cfg.Sources.FlightOrder)
	require.Equal(t, int64(80000), cfg.Alerts.FlightInstantEurCents)
	require.Equal(t, int64(4500), cfg.Alerts.StayInstantUsdCents)
	require.False(t, cfg.Telegram.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  addr: ":9090"
fetch:
  policy: fanout
  gate_ttl: 10m
scheduler:
  flight_interval: 2h
sources:
  flight_order: serpapi,amadeus
telegram:
  enabled: true
  bot_token: tok
  chat_id: "1234"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.Server.Addr)
	require.Equal(t, "fanout", cfg.Fetch.Policy)
	require.Equal(t, 10*time.Minute, cfg.Fetch.GateTTL)
	require.Equal(t, 2*time.Hour, cfg.Scheduler.FlightInterval)
	require.Equal(t, []string{"serpapi", "amadeus"}, cfg.Sources.FlightOrder)
	require.True(t, cfg.Telegram.Enabled)
	require.Equal(t, "tok", cfg.Telegram.BotToken)
}

func TestLoadEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TOKYOSNIPER_FETCH_POLICY", "fanout")
	t.Setenv("TOKYOSNIPER_SERVER_CRON_SECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "fanout", cfg.Fetch.Policy)
	require.Equal(t, "s3cret", cfg.Server.CronSecret)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		chdir(t, t.TempDir())
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown policy", func(c *Config) { c.Fetch.Policy = "race" }},
		{"zero gate ttl", func(c *Config) { c.Fetch.GateTTL = 0 }},
		{"zero flight interval", func(c *Config) { c.Scheduler.FlightInterval = 0 }},
		{"negative drop percent", func(c *Config) { c.Alerts.FlightDropPercent = -1 }},
		{"telegram without token", func(c *Config) {
			c.Telegram.Enabled = true
			c.Telegram.ChatID = "1"
		}},
		{"telegram without chat id", func(c *Config) {
			c.Telegram.Enabled = true
			c.Telegram.BotToken = "tok"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
