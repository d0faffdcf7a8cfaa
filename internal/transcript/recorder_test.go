package transcript

import (
	"context"
	"testing"

	"paperbot/internal/bus"
	"paperbot/internal/domain"
)

func TestRecorder_SpokenMessagesLandInStore(t *testing.T) {
	store := testStore(t)
	rec := NewRecorder(store, testLogger())
	b := bus.New(testLogger())
	rec.Attach(b)

	b.Publish(domain.SpokenMessage{
		Message:        domain.NewAssistantMessage("scientist", "spoken answer"),
		ConversationID: "conv-1",
		Mode:           domain.ModeChat,
		LatencyMs:      42,
	})

	entries, err := store.RecentEntries(context.Background(), "conv-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Content != "spoken answer" || entries[0].Mode != "chat" {
		t.Errorf("entry mismatch: %+v", entries[0])
	}
}

func TestRecorder_SpokenCreatesConversation(t *testing.T) {
	store := testStore(t)
	rec := NewRecorder(store, testLogger())
	b := bus.New(testLogger())
	rec.Attach(b)

	b.Publish(domain.SpokenMessage{
		Message:        domain.NewAssistantMessage("scientist", "hi"),
		ConversationID: "fresh",
	})

	conv, err := store.GetConversation(context.Background(), "fresh")
	if err != nil {
		t.Fatal(err)
	}
	if conv == nil {
		t.Fatal("conversation row should exist after first spoken message")
	}
}

func TestRecorder_RecordUser_TitlesConversation(t *testing.T) {
	store := testStore(t)
	rec := NewRecorder(store, testLogger())
	ctx := context.Background()

	if err := rec.EnsureConversation(ctx, "conv-1", "cli"); err != nil {
		t.Fatal(err)
	}
	rec.RecordUser(ctx, "conv-1", domain.NewUserMessage("user", "How do transformers work?\nAlso cite sources."))

	conv, _ := store.GetConversation(ctx, "conv-1")
	if conv.Title != "How do transformers work?" {
		t.Errorf("expected title from first line, got %q", conv.Title)
	}
}

func TestRecorder_TitleSetOnce(t *testing.T) {
	store := testStore(t)
	rec := NewRecorder(store, testLogger())
	ctx := context.Background()

	rec.EnsureConversation(ctx, "conv-1", "cli")
	rec.RecordUser(ctx, "conv-1", domain.NewUserMessage("user", "first question"))
	rec.RecordUser(ctx, "conv-1", domain.NewUserMessage("user", "second question"))

	conv, _ := store.GetConversation(ctx, "conv-1")
	if conv.Title != "first question" {
		t.Errorf("title must stick to the first message, got %q", conv.Title)
	}
}

func TestRecorder_EnsureConversation_Idempotent(t *testing.T) {
	store := testStore(t)
	rec := NewRecorder(store, testLogger())
	ctx := context.Background()

	if err := rec.EnsureConversation(ctx, "conv-1", "cli"); err != nil {
		t.Fatal(err)
	}
	if err := rec.EnsureConversation(ctx, "conv-1", "cli"); err != nil {
		t.Fatalf("second ensure must not fail: %v", err)
	}
}

func TestGenerateTitle_Truncates(t *testing.T) {
	long := "This is a very long opening question about the comparative performance of retrieval augmented models"
	title := generateTitle(long)
	if len(title) > 64 {
		t.Errorf("title too long: %q", title)
	}
	if title == long {
		t.Error("expected truncation")
	}
}
