package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"rin-bot/internal/domain"
)

// DiscordOption configures the Discord channel.
type DiscordOption func(*DiscordChannel)

// WithDiscordGuild registers slash commands on a single guild instead of
// globally. Guild-scoped registration propagates immediately, which is
// useful during development.
func WithDiscordGuild(guildID string) DiscordOption {
	return func(d *DiscordChannel) { d.guildID = guildID }
}

// WithDiscordOwner marks a user ID as the bot owner for owner-only commands.
func WithDiscordOwner(ownerID string) DiscordOption {
	return func(d *DiscordChannel) { d.ownerID = ownerID }
}

// DiscordChannel exposes the bot over Discord slash commands via discordgo.
type DiscordChannel struct {
	token   string
	session *discordgo.Session
	bot     domain.ChatBot
	audit   domain.AuditSink
	logger  *slog.Logger
	guildID string
	ownerID string
}

// NewDiscordChannel creates a Discord channel for the given bot.
func NewDiscordChannel(token string, bot domain.ChatBot, audit domain.AuditSink, logger *slog.Logger, opts ...DiscordOption) *DiscordChannel {
	d := &DiscordChannel{
		token:  token,
		bot:    bot,
		audit:  audit,
		logger: logger,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *DiscordChannel) Name() string { return "discord" }

// Start opens the gateway connection and registers the slash commands.
func (d *DiscordChannel) Start(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	d.session = dg
	d.session.Identify.Intents = discordgo.IntentsGuilds

	d.session.AddHandler(d.onInteractionCreate)
	d.session.AddHandler(d.onGuildCreate)
	d.session.AddHandler(d.onGuildDelete)

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}

	appID := d.session.State.User.ID
	if _, err := d.session.ApplicationCommandBulkOverwrite(appID, d.guildID, slashCommands()); err != nil {
		d.session.Close()
		return fmt.Errorf("register slash commands: %w", err)
	}

	d.logger.Info("discord channel started", "user_id", appID, "guild_scope", d.guildID != "")
	return nil
}

// Stop closes the gateway connection.
func (d *DiscordChannel) Stop(_ context.Context) error {
	if d.session != nil {
		return d.session.Close()
	}
	return nil
}

func slashCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "chat",
			Description: "Talk to the bot",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "prompt",
					Description: "What to say",
					Required:    true,
				},
			},
		},
		{
			Name:        "setpersona",
			Description: "Set the bot's persona for this conversation",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "persona",
					Description: "The new persona text",
					Required:    true,
				},
			},
		},
		{
			Name:        "reset",
			Description: "Clear the conversation history",
		},
		{
			Name:        "ai_health",
			Description: "Check whether the AI service is reachable",
		},
		{
			Name:        "guilds",
			Description: "List the guilds the bot is in (owner only)",
		},
	}
}

func (d *DiscordChannel) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	switch data.Name {
	case "chat":
		d.handleChat(ctx, s, i, optionValue(data, "prompt"))
	case "setpersona":
		d.handleSetPersona(ctx, s, i, optionValue(data, "persona"))
	case "reset":
		d.handleReset(ctx, s, i)
	case "ai_health":
		d.handleHealth(ctx, s, i)
	case "guilds":
		d.handleGuilds(s, i)
	}
}

// handleChat defers the response and streams the reply back as chunked
// followups, since a completion can take longer than Discord's 3 second
// initial response window.
func (d *DiscordChannel) handleChat(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, prompt string) {
	if err := d.deferResponse(s, i, false); err != nil {
		d.logger.Error("discord defer failed", "error", err)
		return
	}

	identity, scope, scopeKey := chatScope(i)
	reply, err := d.bot.Chat(ctx, identity, scope, scopeKey, prompt)
	if err != nil {
		d.logger.Error("chat turn failed", "identity", identity, "error", err)
		reply = "⚠️ Something went wrong. Please try again soon."
	}

	for _, chunk := range Chunk(reply, DefaultChunkLimit) {
		if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Content: chunk,
		}); err != nil {
			d.logger.Error("discord followup failed", "error", err)
			return
		}
	}
}

func (d *DiscordChannel) handleSetPersona(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, persona string) {
	identity, _, _ := chatScope(i)
	if err := d.bot.SetPersona(ctx, identity, persona); err != nil {
		d.respond(s, i, "⚠️ Could not update the persona. Please try again.", true)
		return
	}
	d.respond(s, i, "✅ Persona updated for this conversation.", true)
}

func (d *DiscordChannel) handleReset(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	identity, _, _ := chatScope(i)
	if err := d.bot.ResetHistory(ctx, identity); err != nil {
		d.respond(s, i, "⚠️ Could not reset the history. Please try again.", true)
		return
	}
	d.respond(s, i, "✅ Conversation history cleared.", true)
}

func (d *DiscordChannel) handleHealth(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := d.deferResponse(s, i, true); err != nil {
		d.logger.Error("discord defer failed", "error", err)
		return
	}

	msg := "✅ AI service is reachable."
	if !d.bot.HealthCheck(ctx) {
		msg = "⚠️ AI service is not responding."
	}
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: msg,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		d.logger.Error("discord followup failed", "error", err)
	}
}

func (d *DiscordChannel) handleGuilds(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if d.ownerID == "" || interactionUserID(i) != d.ownerID {
		d.respond(s, i, "⚠️ This command is owner-only.", true)
		return
	}

	var b strings.Builder
	guilds := s.State.Guilds
	fmt.Fprintf(&b, "Connected to %d guild(s):\n", len(guilds))
	for _, g := range guilds {
		fmt.Fprintf(&b, "- %s (%s)\n", g.Name, g.ID)
	}
	d.respond(s, i, b.String(), true)
}

func (d *DiscordChannel) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	d.logger.Info("joined guild", "guild_id", g.ID, "name", g.Name)
	d.emitGuildAudit("Guild joined", g.ID, g.Name)
}

func (d *DiscordChannel) onGuildDelete(_ *discordgo.Session, g *discordgo.GuildDelete) {
	if g.Unavailable {
		return
	}
	d.logger.Info("removed from guild", "guild_id", g.ID)
	d.emitGuildAudit("Guild removed", g.ID, g.Guild.Name)
}

func (d *DiscordChannel) emitGuildAudit(title, guildID, name string) {
	if d.audit == nil {
		return
	}
	d.audit.Emit(context.Background(), domain.AuditEvent{
		Timestamp: time.Now().UTC(),
		Title:     title,
		Fields: []domain.AuditField{
			{Name: "guild_id", Value: guildID},
			{Name: "name", Value: name},
		},
	})
}

func (d *DiscordChannel) deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) error {
	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}
	if ephemeral {
		resp.Data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
	}
	return s.InteractionRespond(i.Interaction, resp)
}

func (d *DiscordChannel) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}); err != nil {
		d.logger.Error("discord respond failed", "error", err)
	}
}

func optionValue(data discordgo.ApplicationCommandInteractionData, name string) string {
	for _, opt := range data.Options {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}

// interactionUserID returns the invoking user's ID for both guild and DM
// interactions; discordgo populates Member in guilds and User in DMs.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// chatScope derives the conversation identity and quota scope from an
// interaction. Threads are always per user, so one member's persona or
// reset never touches another's history; guild turns draw from the guild's
// shared daily limit.
func chatScope(i *discordgo.InteractionCreate) (identity string, scope domain.QuotaScope, scopeKey string) {
	userID := interactionUserID(i)
	if i.GuildID == "" {
		return "dm:" + userID, domain.ScopeDirect, userID
	}
	return "guild:" + i.GuildID + ":" + userID, domain.ScopeGroup, i.GuildID
}
