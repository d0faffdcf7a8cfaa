package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

const (
	slackMaxMsgLen  = 4000
	slackAskTimeout = 2 * time.Minute
)

// Slack answers questions over Slack using Socket Mode. Direct messages are
// always answered; in channels the bot only reacts to @mentions.
type Slack struct {
	botToken string
	appToken string
	client   *slack.Client
	socket   *socketmode.Client
	turns    *Turns
	logger   *slog.Logger
	botUID   string // the bot's own user ID, to avoid replying to self
}

// SlackConfig configures the Slack channel.
type SlackConfig struct {
	BotToken string
	AppToken string
	Turns    *Turns
	Logger   *slog.Logger
}

// NewSlack creates a new Slack channel handler.
func NewSlack(cfg SlackConfig) *Slack {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Slack{
		botToken: cfg.BotToken,
		appToken: cfg.AppToken,
		turns:    cfg.Turns,
		logger:   cfg.Logger,
	}
}

func (s *Slack) Name() string { return "slack" }

// Start connects to Slack via Socket Mode and listens for events until ctx
// is cancelled.
func (s *Slack) Start(ctx context.Context) error {
	api := slack.New(
		s.botToken,
		slack.OptionAppLevelToken(s.appToken),
	)
	s.client = api

	authResp, err := api.AuthTest()
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.botUID = authResp.UserID
	s.logger.Info("slack bot connected", "user", authResp.User, "user_id", authResp.UserID)

	socketClient := socketmode.New(api)
	s.socket = socketClient

	go func() {
		for evt := range socketClient.Events {
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				socketClient.Ack(*evt.Request)
				s.handleEventsAPI(ctx, eventsAPIEvent)

			case socketmode.EventTypeSlashCommand:
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				socketClient.Ack(*evt.Request)
				go s.respond(ctx, cmd.ChannelID, cmd.UserID, cmd.Text)

			default:
				// Acknowledge unknown events to prevent Socket Mode disconnection.
				if evt.Request != nil {
					socketClient.Ack(*evt.Request)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- socketClient.RunContext(ctx)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("slack bot disconnecting")
		return nil
	case err := <-errCh:
		return fmt.Errorf("slack socket mode: %w", err)
	}
}

func (s *Slack) Stop() error { return nil }

func (s *Slack) handleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		// Ignore the bot's own messages and message_changed subtypes.
		if ev.User == s.botUID || ev.User == "" {
			return
		}
		if ev.SubType != "" {
			return
		}
		// Plain messages are only answered in direct messages; channel
		// traffic goes through @mentions.
		if ev.ChannelType != "im" {
			return
		}

		s.logger.Info("slack message received",
			"user", ev.User,
			"channel", ev.Channel,
			"content_len", len(ev.Text),
		)
		go s.respond(ctx, ev.Channel, ev.User, ev.Text)

	case *slackevents.AppMentionEvent:
		s.logger.Info("slack mention received",
			"user", ev.User,
			"channel", ev.Channel,
		)

		// Strip the mention prefix.
		content := ev.Text
		if idx := strings.Index(content, ">"); idx >= 0 {
			content = strings.TrimSpace(content[idx+1:])
		}
		go s.respond(ctx, ev.Channel, ev.User, content)
	}
}

func (s *Slack) respond(ctx context.Context, channelID, userID, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	askCtx, cancel := context.WithTimeout(ctx, slackAskTimeout)
	defer cancel()

	reply, err := s.turns.Ask(askCtx, s.Name(), userID, text)
	if err != nil {
		s.logger.Error("slack turn failed", "channel", channelID, "err", err)
		s.sendMessage(channelID, "Sorry, I could not process that question. Please try again.")
		return
	}
	s.sendMessage(channelID, reply)
}

func (s *Slack) sendMessage(channelID, content string) {
	for _, chunk := range splitMessage(content, slackMaxMsgLen) {
		_, _, err := s.client.PostMessage(
			channelID,
			slack.MsgOptionText(chunk, false),
			slack.MsgOptionAsUser(true),
		)
		if err != nil {
			s.logger.Error("slack send failed", "channel", channelID, "err", err)
		}
	}
}
