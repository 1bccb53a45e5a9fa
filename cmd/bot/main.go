package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"rin-bot/internal/adapter/audit"
	"rin-bot/internal/adapter/channel"
	"rin-bot/internal/adapter/llm"
	"rin-bot/internal/domain"
	"rin-bot/internal/infra/config"
	"rin-bot/internal/infra/logger"
	"rin-bot/internal/infra/tracer"
	"rin-bot/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Config
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Audit sink
	var sink domain.AuditSink = audit.NewNoopSink()
	if cfg.Audit.WebhookURL != "" {
		sink = audit.NewWebhookSink(cfg.Audit.WebhookURL, cfg.Audit.EventsPerSecond, logger.WithComponent(log, "audit"))
	}
	defer sink.Close()

	// 4. LLM provider
	provider, err := initProvider(cfg, logger.WithComponent(log, "llm"))
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}

	// 5. Chat service
	store := usecase.NewConversationStore(cfg.Bot.DefaultPersona, cfg.Bot.HistoryDepth)
	quota := usecase.NewQuotaTracker()
	svc := usecase.NewChatService(store, quota, provider, sink, log, usecase.ChatConfig{
		Model:            cfg.Bot.Model,
		Temperature:      cfg.Bot.Temperature,
		DirectDailyLimit: cfg.Quota.DMDailyLimit,
		GroupDailyLimit:  cfg.Quota.GuildDailyLimit,
	})

	// 6. Channels
	channels, err := initChannels(cfg, svc, sink, log)
	if err != nil {
		return fmt.Errorf("channels: %w", err)
	}

	// 7. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for _, ch := range channels {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("start %s channel: %w", ch.Name(), err)
		}
		log.Info("channel running", "channel", ch.Name())
	}

	log.Info("bot running", "model", cfg.Bot.Model, "provider", provider.Name())
	sink.Emit(ctx, domain.AuditEvent{
		ID:        ulid.Make().String(),
		Timestamp: time.Now().UTC(),
		Title:     "Bot started",
		Fields: []domain.AuditField{
			{Name: "Provider", Value: provider.Name()},
			{Name: "Model", Value: cfg.Bot.Model},
		},
	})
	<-ctx.Done()
	log.Info("shutting down")

	for _, ch := range channels {
		if err := ch.Stop(context.Background()); err != nil {
			log.Error("channel stop error", "channel", ch.Name(), "error", err)
		}
	}
	return nil
}

// initProvider builds the configured LLM provider, wrapped in a circuit
// breaker when enabled.
func initProvider(cfg *config.Config, log *slog.Logger) (domain.LLMProvider, error) {
	var pcfg *config.ProviderConfig
	for i := range cfg.LLM.Providers {
		if cfg.LLM.Providers[i].Name == cfg.LLM.DefaultProvider {
			pcfg = &cfg.LLM.Providers[i]
			break
		}
	}
	if pcfg == nil {
		return nil, fmt.Errorf("provider %q not configured", cfg.LLM.DefaultProvider)
	}
	if pcfg.Model == "" {
		pcfg.Model = cfg.Bot.Model
	}

	var provider domain.LLMProvider
	switch pcfg.Type {
	case "bedrock":
		p, err := llm.NewBedrockProvider(*pcfg, log)
		if err != nil {
			return nil, err
		}
		provider = p
	case "openai", "":
		provider = llm.NewOpenAIProvider(*pcfg, log)
	default:
		return nil, fmt.Errorf("unsupported provider type %q", pcfg.Type)
	}

	if cfg.LLM.CircuitBreaker.Enabled {
		provider = llm.NewCircuitBreakerProvider(provider, cfg.LLM.CircuitBreaker, log)
	}
	return provider, nil
}

// botChannel is the lifecycle every chat platform adapter implements.
type botChannel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

func initChannels(cfg *config.Config, bot domain.ChatBot, sink domain.AuditSink, log *slog.Logger) ([]botChannel, error) {
	var channels []botChannel

	if cfg.Channels.Discord.Token != "" {
		opts := []channel.DiscordOption{}
		if cfg.Channels.Discord.GuildID != "" {
			opts = append(opts, channel.WithDiscordGuild(cfg.Channels.Discord.GuildID))
		}
		if cfg.Bot.OwnerID != "" {
			opts = append(opts, channel.WithDiscordOwner(cfg.Bot.OwnerID))
		}
		channels = append(channels, channel.NewDiscordChannel(cfg.Channels.Discord.Token, bot, sink, logger.WithComponent(log, "discord"), opts...))
	}

	if cfg.Channels.Slack.BotToken != "" && cfg.Channels.Slack.AppToken != "" {
		channels = append(channels, channel.NewSlackChannel(cfg.Channels.Slack.BotToken, cfg.Channels.Slack.AppToken, bot, logger.WithComponent(log, "slack")))
	}

	if len(channels) == 0 {
		return nil, fmt.Errorf("no channel configured (set RINBOT_DISCORD_TOKEN or RINBOT_SLACK_BOT_TOKEN/RINBOT_SLACK_APP_TOKEN)")
	}
	return channels, nil
}
