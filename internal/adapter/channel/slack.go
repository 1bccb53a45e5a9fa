package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"rin-bot/internal/domain"
)

// SlackChannel exposes the bot over Slack Socket Mode. Direct messages
// always reach the bot; channel messages only when the bot is mentioned.
type SlackChannel struct {
	botToken  string
	appToken  string
	api       *slack.Client
	socketCli *socketmode.Client
	bot       domain.ChatBot
	logger    *slog.Logger
	botUserID string
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewSlackChannel creates a Slack channel for the given bot.
func NewSlackChannel(botToken, appToken string, bot domain.ChatBot, logger *slog.Logger) *SlackChannel {
	return &SlackChannel{
		botToken: botToken,
		appToken: appToken,
		bot:      bot,
		logger:   logger,
	}
}

func (s *SlackChannel) Name() string { return "slack" }

// Start connects the socket mode client and begins handling events.
func (s *SlackChannel) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.api = slack.New(s.botToken, slack.OptionAppLevelToken(s.appToken))
	s.socketCli = socketmode.New(s.api)

	authResp, err := s.api.AuthTest()
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	s.botUserID = authResp.UserID
	s.logger.Info("slack channel started", "bot_user_id", s.botUserID)

	go s.eventLoop()
	go func() {
		if err := s.socketCli.Run(); err != nil {
			s.logger.Error("slack socket mode error", "error", err)
		}
	}()

	return nil
}

// Stop cancels the event loop.
func (s *SlackChannel) Stop(_ context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func (s *SlackChannel) eventLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case evt := <-s.socketCli.Events:
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			s.socketCli.Ack(*evt.Request)

			if ev, ok := eventsAPIEvent.InnerEvent.Data.(*slackevents.MessageEvent); ok {
				s.handleMessage(ev)
			}
		}
	}
}

func (s *SlackChannel) handleMessage(ev *slackevents.MessageEvent) {
	// Ignore bot and system messages.
	if ev.User == "" || ev.User == s.botUserID || ev.BotID != "" {
		return
	}

	isDM := ev.ChannelType == "im"
	isMention := strings.Contains(ev.Text, "<@"+s.botUserID+">")
	if !isDM && !isMention {
		return
	}

	text := ev.Text
	if isMention {
		text = strings.ReplaceAll(text, "<@"+s.botUserID+">", "")
		text = strings.TrimSpace(text)
	}

	identity, scope, scopeKey := slackScope(ev, isDM)

	if handled := s.handleCommand(identity, ev.Channel, text); handled {
		return
	}

	reply, err := s.bot.Chat(s.ctx, identity, scope, scopeKey, text)
	if err != nil {
		s.logger.Error("chat turn failed", "identity", identity, "error", err)
		reply = "⚠️ Something went wrong. Please try again soon."
	}
	s.post(ev.Channel, reply)
}

// handleCommand processes bot commands. Returns true if the text was a
// command and the turn should not reach the model.
func (s *SlackChannel) handleCommand(identity, channel, text string) bool {
	switch {
	case strings.HasPrefix(text, "!persona "):
		persona := strings.TrimSpace(strings.TrimPrefix(text, "!persona "))
		if err := s.bot.SetPersona(s.ctx, identity, persona); err != nil {
			s.post(channel, "⚠️ Could not update the persona. Please try again.")
			return true
		}
		s.post(channel, "✅ Persona updated for this conversation.")
		return true
	case text == "!reset":
		if err := s.bot.ResetHistory(s.ctx, identity); err != nil {
			s.post(channel, "⚠️ Could not reset the history. Please try again.")
			return true
		}
		s.post(channel, "✅ Conversation history cleared.")
		return true
	case text == "!health":
		msg := "✅ AI service is reachable."
		if !s.bot.HealthCheck(s.ctx) {
			msg = "⚠️ AI service is not responding."
		}
		s.post(channel, msg)
		return true
	}
	return false
}

func (s *SlackChannel) post(channel, text string) {
	for _, chunk := range Chunk(text, DefaultChunkLimit) {
		if _, _, err := s.api.PostMessage(channel, slack.MsgOptionText(chunk, false)); err != nil {
			s.logger.Error("slack post failed", "channel", channel, "error", err)
			return
		}
	}
}

// slackScope derives the conversation identity and quota scope from a
// message event. Threads are always per user; channel turns draw from the
// channel's shared daily limit.
func slackScope(ev *slackevents.MessageEvent, isDM bool) (identity string, scope domain.QuotaScope, scopeKey string) {
	if isDM {
		return "slack-dm:" + ev.User, domain.ScopeDirect, ev.User
	}
	return "slack-ch:" + ev.Channel + ":" + ev.User, domain.ScopeGroup, ev.Channel
}
