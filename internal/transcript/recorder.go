package transcript

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"paperbot/internal/domain"
)

const defaultTitle = "New conversation"

// recordTimeout bounds store writes made from bus callbacks, which carry no
// caller context.
const recordTimeout = 5 * time.Second

// Recorder persists the conversation flow: user inputs recorded by the
// channels, spoken responses picked up from the bus.
type Recorder struct {
	store  domain.TranscriptStore
	logger *slog.Logger
	mu     sync.Mutex
}

func NewRecorder(store domain.TranscriptStore, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// Attach subscribes the recorder to a spoken bus. Every published message
// lands in the store regardless of whether the turn committed it to the
// agent's working memory.
func (r *Recorder) Attach(b domain.SpokenBus) {
	b.Subscribe("transcript", r.recordSpoken)
}

func (r *Recorder) recordSpoken(msg domain.SpokenMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.EnsureConversation(ctx, msg.ConversationID, ""); err != nil {
		r.logger.Warn("transcript: ensure conversation failed", "error", err)
		return
	}
	entry := domain.TranscriptEntry{
		ConversationID: msg.ConversationID,
		Sender:         msg.Message.Sender,
		Role:           msg.Message.Role,
		Content:        msg.Message.Content,
		Mode:           string(msg.Mode),
		LatencyMs:      msg.LatencyMs,
	}
	if err := r.store.AddEntry(ctx, msg.ConversationID, entry); err != nil {
		r.logger.Warn("transcript: record spoken failed", "error", err)
	}
}

// EnsureConversation creates the conversation row if it does not exist yet.
func (r *Recorder) EnsureConversation(ctx context.Context, id, channel string) error {
	// Fast path: most calls find the row.
	conv, err := r.store.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	if conv != nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conv, err = r.store.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	if conv != nil {
		return nil
	}
	return r.store.CreateConversation(ctx, domain.Conversation{
		ID:      id,
		Title:   defaultTitle,
		Channel: channel,
	})
}

// RecordUser stores an inbound user message and titles the conversation
// after its first message.
func (r *Recorder) RecordUser(ctx context.Context, convID string, msg domain.Message) {
	entry := domain.TranscriptEntry{
		ConversationID: convID,
		Sender:         msg.Sender,
		Role:           msg.Role,
		Content:        msg.Content,
	}
	if err := r.store.AddEntry(ctx, convID, entry); err != nil {
		r.logger.Warn("transcript: record user failed", "error", err)
		return
	}
	r.maybeTitle(ctx, convID, msg.Content)
}

func (r *Recorder) maybeTitle(ctx context.Context, convID, firstMsg string) {
	conv, err := r.store.GetConversation(ctx, convID)
	if err != nil || conv == nil {
		return
	}
	if conv.Title != "" && conv.Title != defaultTitle {
		return
	}
	conv.Title = generateTitle(firstMsg)
	if err := r.store.UpdateConversation(ctx, *conv); err != nil {
		r.logger.Warn("transcript: title update failed", "conversation", convID, "error", err)
	}
}

func generateTitle(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return defaultTitle
	}
	if idx := strings.IndexAny(msg, "\n\r"); idx > 0 {
		msg = msg[:idx]
	}
	if len(msg) > 60 {
		cut := strings.LastIndex(msg[:60], " ")
		if cut < 20 {
			cut = 60
		}
		msg = msg[:cut] + "..."
	}
	return msg
}
