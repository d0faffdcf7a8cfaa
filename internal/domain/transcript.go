package domain

import (
	"context"
	"time"
)

// TranscriptStore persists spoken messages grouped into conversations.
type TranscriptStore interface {
	CreateConversation(ctx context.Context, conv Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	UpdateConversation(ctx context.Context, conv Conversation) error
	ListConversations(ctx context.Context, limit int) ([]Conversation, error)

	AddEntry(ctx context.Context, convID string, entry TranscriptEntry) error
	RecentEntries(ctx context.Context, convID string, limit int) ([]TranscriptEntry, error)
	CountEntries(ctx context.Context) (int64, error)

	Close() error
}

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Channel   string    `json:"channel"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TranscriptEntry is one spoken message as stored.
type TranscriptEntry struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Sender         string    `json:"sender"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Mode           string    `json:"mode,omitempty"`
	LatencyMs      int64     `json:"latency_ms,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
