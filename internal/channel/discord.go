package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	discordMaxMsgLen  = 2000
	discordAskTimeout = 2 * time.Minute
)

// Discord answers questions over Discord. Direct messages are always
// answered; in guild channels the bot reacts to @mentions and to the /ask
// slash command.
type Discord struct {
	token   string
	guildID string
	session *discordgo.Session
	turns   *Turns
	logger  *slog.Logger
}

// DiscordConfig configures the Discord channel.
type DiscordConfig struct {
	Token   string
	GuildID string
	Turns   *Turns
	Logger  *slog.Logger
}

// NewDiscord creates a new Discord channel handler.
func NewDiscord(cfg DiscordConfig) *Discord {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Discord{
		token:   cfg.Token,
		guildID: cfg.GuildID,
		turns:   cfg.Turns,
		logger:  cfg.Logger,
	}
}

func (d *Discord) Name() string { return "discord" }

// Start connects to Discord using a bot token and listens until ctx is
// cancelled.
func (d *Discord) Start(ctx context.Context) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	d.session = session

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		d.handleMessage(ctx, s, m)
	})
	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		d.handleInteraction(ctx, s, i)
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}

	d.logger.Info("discord bot connected", "user", session.State.User.Username)

	d.registerSlashCommands()

	<-ctx.Done()
	d.logger.Info("discord bot disconnecting")
	return session.Close()
}

func (d *Discord) Stop() error { return nil }

func (d *Discord) handleMessage(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore the bot's own messages.
	if m.Author.ID == s.State.User.ID {
		return
	}
	if d.guildID != "" && m.GuildID != "" && m.GuildID != d.guildID {
		return
	}

	content := strings.TrimSpace(m.Content)

	// In guild channels, only respond when mentioned.
	if m.GuildID != "" {
		if !d.mentionsBot(s, m) {
			return
		}
		content = d.stripMention(s, content)
	}
	if content == "" {
		return
	}

	d.logger.Info("discord message received",
		"author", m.Author.Username,
		"channel_id", m.ChannelID,
		"content_len", len(content),
	)

	_ = s.ChannelTyping(m.ChannelID)
	go d.respond(ctx, m.ChannelID, m.Author.ID, content)
}

func (d *Discord) handleInteraction(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()

	switch data.Name {
	case "ask":
		var question string
		for _, opt := range data.Options {
			if opt.Name == "question" && opt.Type == discordgo.ApplicationCommandOptionString {
				question = opt.StringValue()
			}
		}
		if strings.TrimSpace(question) == "" {
			d.replyInteraction(s, i, "Please provide a question.")
			return
		}

		// Turns take longer than the 3 second interaction deadline, so
		// defer and edit the response once the answer is ready.
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		})
		if err != nil {
			d.logger.Error("discord interaction ack failed", "err", err)
			return
		}
		go d.respondDeferred(ctx, s, i, question)

	case "status":
		d.replyInteraction(s, i, fmt.Sprintf("%s is online and connected to the paper library.", d.turns.AgentName()))

	case "help":
		d.replyInteraction(s, i, "Mention me or use /ask to get answers grounded in the paper library.")
	}
}

func (d *Discord) respond(ctx context.Context, channelID, userID, text string) {
	askCtx, cancel := context.WithTimeout(ctx, discordAskTimeout)
	defer cancel()

	reply, err := d.turns.Ask(askCtx, d.Name(), userID, text)
	if err != nil {
		d.logger.Error("discord turn failed", "channel", channelID, "err", err)
		d.sendMessage(channelID, "Sorry, I could not process that question. Please try again.")
		return
	}
	d.sendMessage(channelID, reply)
}

func (d *Discord) respondDeferred(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, question string) {
	askCtx, cancel := context.WithTimeout(ctx, discordAskTimeout)
	defer cancel()

	userID := ""
	if i.Member != nil && i.Member.User != nil {
		userID = i.Member.User.ID
	} else if i.User != nil {
		userID = i.User.ID
	}

	reply, err := d.turns.Ask(askCtx, d.Name(), userID, question)
	if err != nil {
		d.logger.Error("discord turn failed", "channel", i.ChannelID, "err", err)
		reply = "Sorry, I could not process that question. Please try again."
	}

	// The interaction edit carries the first chunk; overflow goes to the
	// channel as regular messages.
	chunks := splitMessage(reply, discordMaxMsgLen)
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &chunks[0]}); err != nil {
		d.logger.Error("discord interaction edit failed", "err", err)
		return
	}
	for _, chunk := range chunks[1:] {
		if _, err := s.ChannelMessageSend(i.ChannelID, chunk); err != nil {
			d.logger.Error("discord send failed", "channel", i.ChannelID, "err", err)
		}
	}
}

func (d *Discord) replyInteraction(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		d.logger.Error("discord interaction reply failed", "err", err)
	}
}

func (d *Discord) mentionsBot(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	for _, u := range m.Mentions {
		if u.ID == s.State.User.ID {
			return true
		}
	}
	return false
}

func (d *Discord) stripMention(s *discordgo.Session, content string) string {
	for _, tag := range []string{"<@" + s.State.User.ID + ">", "<@!" + s.State.User.ID + ">"} {
		content = strings.ReplaceAll(content, tag, "")
	}
	return strings.TrimSpace(content)
}

func (d *Discord) sendMessage(channelID, content string) {
	for _, chunk := range splitMessage(content, discordMaxMsgLen) {
		if _, err := d.session.ChannelMessageSend(channelID, chunk); err != nil {
			d.logger.Error("discord send failed", "channel", channelID, "err", err)
		}
	}
}

func (d *Discord) registerSlashCommands() {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "ask",
			Description: "Ask a question about the paper library",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "question",
					Description: "Your question",
					Required:    true,
				},
			},
		},
		{
			Name:        "status",
			Description: "Show bot status",
		},
		{
			Name:        "help",
			Description: "Show available commands",
		},
	}

	guildID := d.guildID // empty = global commands
	for _, cmd := range commands {
		_, err := d.session.ApplicationCommandCreate(d.session.State.User.ID, guildID, cmd)
		if err != nil {
			d.logger.Warn("failed to register slash command", "command", cmd.Name, "err", err)
		}
	}
}
