package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Bot.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", cfg.Bot.Model)
	}
	if cfg.Bot.Temperature != 0.7 {
		t.Errorf("temperature = %v", cfg.Bot.Temperature)
	}
	if cfg.Bot.HistoryDepth != 12 {
		t.Errorf("history depth = %d", cfg.Bot.HistoryDepth)
	}
	if cfg.Bot.DefaultPersona != DefaultPersona {
		t.Errorf("persona = %q", cfg.Bot.DefaultPersona)
	}
	if cfg.Quota.DMDailyLimit != 0 || cfg.Quota.GuildDailyLimit != 0 {
		t.Error("default quotas should be unlimited")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
bot:
  model: gpt-4o
  history_depth: 6
  owner_id: "42"
quota:
  dm_daily_limit: 25
  guild_daily_limit: 100
llm:
  circuit_breaker:
    enabled: true
    max_failures: 3
    timeout: 15s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bot.Model != "gpt-4o" {
		t.Errorf("model = %q", cfg.Bot.Model)
	}
	if cfg.Bot.HistoryDepth != 6 {
		t.Errorf("history depth = %d", cfg.Bot.HistoryDepth)
	}
	if cfg.Quota.DMDailyLimit != 25 || cfg.Quota.GuildDailyLimit != 100 {
		t.Errorf("quota = %+v", cfg.Quota)
	}
	if cfg.LLM.CircuitBreaker.MaxFailures != 3 || cfg.LLM.CircuitBreaker.Timeout != 15*time.Second {
		t.Errorf("circuit breaker = %+v", cfg.LLM.CircuitBreaker)
	}

	// Unspecified fields keep their defaults.
	if cfg.Bot.Temperature != 0.7 {
		t.Errorf("temperature = %v, want default", cfg.Bot.Temperature)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bot.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want default", cfg.Bot.Model)
	}
}

func TestLoadRejectsWorldReadable(t *testing.T) {
	path := writeConfig(t, "bot:\n  model: gpt-4o\n")
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected permission error for world-readable config")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("RINBOT_DISCORD_TOKEN", "tok-discord")
	t.Setenv("RINBOT_OPENAI_API_KEY", "sk-test")
	t.Setenv("RINBOT_LOG_WEBHOOK_URL", "https://discord.com/api/webhooks/1/abc")
	t.Setenv("RINBOT_OWNER_ID", "owner-1")
	t.Setenv("RINBOT_DM_DAILY_LIMIT", "25")
	t.Setenv("RINBOT_GUILD_DAILY_LIMIT", "100")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Channels.Discord.Token != "tok-discord" {
		t.Errorf("discord token = %q", cfg.Channels.Discord.Token)
	}
	if cfg.LLM.Providers[0].APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.LLM.Providers[0].APIKey)
	}
	if cfg.Audit.WebhookURL != "https://discord.com/api/webhooks/1/abc" {
		t.Errorf("webhook url = %q", cfg.Audit.WebhookURL)
	}
	if cfg.Bot.OwnerID != "owner-1" {
		t.Errorf("owner = %q", cfg.Bot.OwnerID)
	}
	if cfg.Quota.DMDailyLimit != 25 || cfg.Quota.GuildDailyLimit != 100 {
		t.Errorf("quota = %+v", cfg.Quota)
	}
}

func TestApplyEnvOverridesIgnoresBadNumbers(t *testing.T) {
	t.Setenv("RINBOT_DM_DAILY_LIMIT", "lots")
	t.Setenv("RINBOT_HISTORY_DEPTH", "-3")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Quota.DMDailyLimit != 0 {
		t.Errorf("dm limit = %d, want unchanged", cfg.Quota.DMDailyLimit)
	}
	if cfg.Bot.HistoryDepth != 12 {
		t.Errorf("history depth = %d, want unchanged", cfg.Bot.HistoryDepth)
	}
}
