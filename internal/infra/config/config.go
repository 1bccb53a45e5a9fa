// Package config loads and validates the bot's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Quota    QuotaConfig    `yaml:"quota"`
	LLM      LLMConfig      `yaml:"llm"`
	Audit    AuditConfig    `yaml:"audit"`
	Logger   LoggerConfig   `yaml:"logger"`
	Tracer   TracerConfig   `yaml:"tracer"`
	Channels ChannelsConfig `yaml:"channels"`
}

// BotConfig holds conversation behavior settings.
type BotConfig struct {
	DefaultPersona string  `yaml:"default_persona"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	HistoryDepth   int     `yaml:"history_depth"`
	OwnerID        string  `yaml:"owner_id"`
}

// QuotaConfig holds per-scope daily turn limits. Zero means unlimited.
type QuotaConfig struct {
	DMDailyLimit    int `yaml:"dm_daily_limit"`
	GuildDailyLimit int `yaml:"guild_daily_limit"`
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Providers       []ProviderConfig     `yaml:"providers"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds circuit breaker settings for LLM providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings for LLM providers.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Region      string        `yaml:"region,omitempty"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// AuditConfig holds audit webhook settings. An empty URL disables delivery.
type AuditConfig struct {
	WebhookURL      string  `yaml:"webhook_url"`
	EventsPerSecond float64 `yaml:"events_per_second"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// ChannelsConfig holds chat platform settings. A channel with an empty
// token is not started.
type ChannelsConfig struct {
	Discord DiscordChannelConfig `yaml:"discord"`
	Slack   SlackChannelConfig   `yaml:"slack"`
}

// DiscordChannelConfig holds Discord channel settings.
type DiscordChannelConfig struct {
	Token   string `yaml:"token"`
	GuildID string `yaml:"guild_id,omitempty"`
}

// SlackChannelConfig holds Slack channel settings.
type SlackChannelConfig struct {
	BotToken string `yaml:"bot_token"`
	AppToken string `yaml:"app_token"`
}

// DefaultPersona is the system message used for threads created without an
// explicit persona.
const DefaultPersona = "You are Rin, a kind and helpful swim club captain. " +
	"Be helpful and upbeat, avoid walls of text, and format responses cleanly. " +
	"If the user asks for code, provide runnable snippets."

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Bot: BotConfig{
			DefaultPersona: DefaultPersona,
			Model:          "gpt-4o-mini",
			Temperature:    0.7,
			HistoryDepth:   12,
		},
		Quota: QuotaConfig{
			DMDailyLimit:    0,
			GuildDailyLimit: 0,
		},
		LLM: LLMConfig{
			DefaultProvider: "openai",
			Providers: []ProviderConfig{
				{
					Name:  "openai",
					Type:  "openai",
					Model: "gpt-4o-mini",
				},
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Audit: AuditConfig{
			EventsPerSecond: 2,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file and applies env var overrides. A missing
// file is not an error; the defaults plus env overrides are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps RINBOT_* env vars to config fields. Env vars win
// over file values so secrets can stay out of the config file.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RINBOT_DEFAULT_PERSONA"); v != "" {
		cfg.Bot.DefaultPersona = v
	}
	if v := os.Getenv("RINBOT_MODEL"); v != "" {
		cfg.Bot.Model = v
	}
	if v := os.Getenv("RINBOT_OWNER_ID"); v != "" {
		cfg.Bot.OwnerID = v
	}
	if v := os.Getenv("RINBOT_HISTORY_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Bot.HistoryDepth = n
		}
	}
	if v := os.Getenv("RINBOT_DM_DAILY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Quota.DMDailyLimit = n
		}
	}
	if v := os.Getenv("RINBOT_GUILD_DAILY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Quota.GuildDailyLimit = n
		}
	}

	if v := os.Getenv("RINBOT_LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := os.Getenv("RINBOT_OPENAI_API_KEY"); v != "" {
		for i := range cfg.LLM.Providers {
			if cfg.LLM.Providers[i].Type == "openai" {
				cfg.LLM.Providers[i].APIKey = v
			}
		}
	}

	if v := os.Getenv("RINBOT_LOG_WEBHOOK_URL"); v != "" {
		cfg.Audit.WebhookURL = v
	}
	if v := os.Getenv("RINBOT_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("RINBOT_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("RINBOT_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}

	if v := os.Getenv("RINBOT_DISCORD_TOKEN"); v != "" {
		cfg.Channels.Discord.Token = v
	}
	if v := os.Getenv("RINBOT_DISCORD_GUILD_ID"); v != "" {
		cfg.Channels.Discord.GuildID = v
	}
	if v := os.Getenv("RINBOT_SLACK_BOT_TOKEN"); v != "" {
		cfg.Channels.Slack.BotToken = v
	}
	if v := os.Getenv("RINBOT_SLACK_APP_TOKEN"); v != "" {
		cfg.Channels.Slack.AppToken = v
	}
}

// validatePermissions rejects world-readable config files, which tend to
// hold bot tokens and API keys.
func validatePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	if info.Mode().Perm()&0o004 != 0 {
		return fmt.Errorf("config file %s is world-readable; run: chmod 600 %s", path, path)
	}
	return nil
}
