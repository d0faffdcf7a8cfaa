package channel

import (
	"context"
	"log/slog"
	"strings"

	"paperbot/internal/agent"
	"paperbot/internal/domain"
	"paperbot/internal/transcript"
)

// Agent is the turn surface channels drive.
type Agent interface {
	Name() string
	ConversationID() string
	Respond(ctx context.Context, input any, opts agent.TurnOptions) (domain.Message, error)
}

// Turns runs conversational turns on behalf of a channel and keeps the
// transcript in step. All channels share one Turns, so they also share the
// agent's working memory.
type Turns struct {
	agent    Agent
	recorder *transcript.Recorder
	logger   *slog.Logger
}

func NewTurns(a Agent, rec *transcript.Recorder, logger *slog.Logger) *Turns {
	if logger == nil {
		logger = slog.Default()
	}
	return &Turns{agent: a, recorder: rec, logger: logger}
}

// AgentName returns the responding identity, used in channel greetings.
func (t *Turns) AgentName() string { return t.agent.Name() }

// ConversationID returns the transcript conversation turns are recorded
// under.
func (t *Turns) ConversationID() string { return t.agent.ConversationID() }

// Ask records the user input, runs one default turn and returns the spoken
// response content.
func (t *Turns) Ask(ctx context.Context, channelName, sender, text string) (string, error) {
	msg := domain.NewUserMessage(sender, text)
	if t.recorder != nil {
		convID := t.agent.ConversationID()
		if err := t.recorder.EnsureConversation(ctx, convID, channelName); err != nil {
			t.logger.Warn("transcript unavailable", "channel", channelName, "error", err)
		} else {
			t.recorder.RecordUser(ctx, convID, msg)
		}
	}

	reply, err := t.agent.Respond(ctx, msg, agent.DefaultTurnOptions())
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

// splitMessage splits a reply into chunks that fit within maxLen, trying to
// split on newlines when possible.
func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}
		cut := maxLen
		if idx := strings.LastIndex(msg[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}
		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}
