package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
environment: test
server:
  port: 8080
binance:
  symbols: [BTCUSDT, ETHUSDT]
  interval: 15m
analysis:
  scan_interval: 15m
  fast_ema: 9
  slow_ema: 20
  min_signal_strength: 0.7
alerts:
  base_cooldown: 30m
  confirmed_cooldown: 1h
notifications:
  cooldown: 5m
  telegram:
    enabled: true
    bot_token: token
    chat_id: "42"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Environment != "test" || c.Server.Port != 8080 {
		t.Fatalf("unexpected config %+v", c)
	}
	if len(c.Binance.Symbols) != 2 || c.Binance.Symbols[0] != "BTCUSDT" {
		t.Fatalf("unexpected symbols %v", c.Binance.Symbols)
	}
	if c.Analysis.ScanInterval != 15*time.Minute {
		t.Fatalf("unexpected scan interval %v", c.Analysis.ScanInterval)
	}
	if c.Alerts.ConfirmedCooldown != time.Hour {
		t.Fatalf("unexpected confirmed cooldown %v", c.Alerts.ConfirmedCooldown)
	}
	if !c.Notifications.Telegram.Enabled || c.Notifications.Telegram.ChatID != "42" {
		t.Fatalf("unexpected telegram config %+v", c.Notifications.Telegram)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("SYMBOLS", "SOLUSDT,XRPUSDT")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("WEBHOOK_URL", "https://hooks.example.com/x")

	c, err := LoadWithEnv(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Server.Port != 9999 {
		t.Fatalf("expected PORT override, got %d", c.Server.Port)
	}
	if len(c.Binance.Symbols) != 2 || c.Binance.Symbols[1] != "XRPUSDT" {
		t.Fatalf("expected SYMBOLS override, got %v", c.Binance.Symbols)
	}
	if c.Notifications.Telegram.BotToken != "env-token" {
		t.Fatalf("expected token override, got %q", c.Notifications.Telegram.BotToken)
	}
	if !c.Notifications.Webhook.Enabled || c.Notifications.Webhook.URL == "" {
		t.Fatalf("expected webhook enabled by env, got %+v", c.Notifications.Webhook)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing environment", "binance:\n  symbols: [BTCUSDT]\n"},
		{"no symbols", "environment: test\n"},
		{"inverted emas", "environment: test\nbinance:\n  symbols: [BTCUSDT]\nanalysis:\n  fast_ema: 20\n  slow_ema: 9\n"},
		{"strength out of range", "environment: test\nbinance:\n  symbols: [BTCUSDT]\nanalysis:\n  min_signal_strength: 1.5\n"},
		{"kafka without brokers", "environment: test\nbinance:\n  symbols: [BTCUSDT]\nkafka:\n  enabled: true\n"},
	}
	for _, tc := range cases {
		if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
