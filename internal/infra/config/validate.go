package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateBot(cfg, ve)
	validateQuota(cfg, ve)
	validateLLM(cfg, ve)
	validateChannels(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateBot(cfg *Config, ve *ValidationError) {
	if cfg.Bot.DefaultPersona == "" {
		ve.Add("bot.default_persona must not be empty")
	}
	if cfg.Bot.Model == "" {
		ve.Add("bot.model must not be empty")
	}
	if cfg.Bot.Temperature < 0 || cfg.Bot.Temperature > 2 {
		ve.Add("bot.temperature must be between 0 and 2")
	}
	if cfg.Bot.HistoryDepth <= 0 {
		ve.Add("bot.history_depth must be > 0")
	}
}

func validateQuota(cfg *Config, ve *ValidationError) {
	if cfg.Quota.DMDailyLimit < 0 {
		ve.Add("quota.dm_daily_limit must be >= 0 (0 = unlimited)")
	}
	if cfg.Quota.GuildDailyLimit < 0 {
		ve.Add("quota.guild_daily_limit must be >= 0 (0 = unlimited)")
	}
}

var validProviderTypes = map[string]bool{
	"openai":  true,
	"bedrock": true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if cfg.LLM.DefaultProvider == "" {
		ve.Add("llm.default_provider must not be empty")
	}

	seen := make(map[string]bool)
	foundDefault := false
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			ve.Add("llm.providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true

		if p.Type != "" && !validProviderTypes[p.Type] {
			ve.Add("llm.providers[%d].type %q is invalid (want: openai, bedrock)", i, p.Type)
		}
		if p.Name == cfg.LLM.DefaultProvider {
			foundDefault = true
		}
	}

	if !foundDefault && cfg.LLM.DefaultProvider != "" && len(cfg.LLM.Providers) > 0 {
		ve.Add("llm.default_provider %q does not match any configured provider", cfg.LLM.DefaultProvider)
	}
}

func validateChannels(cfg *Config, ve *ValidationError) {
	slack := cfg.Channels.Slack
	if (slack.BotToken == "") != (slack.AppToken == "") {
		ve.Add("channels.slack requires both bot_token and app_token")
	}
}
