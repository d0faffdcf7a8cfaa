package channel

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"paperbot/internal/agent"
	"paperbot/internal/domain"
	"paperbot/internal/transcript"
)

func testChannelLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockAgent answers every turn with a fixed reply.
type mockAgent struct {
	name     string
	convID   string
	reply    string
	err      error
	calls    int
	lastIn   any
	lastOpts agent.TurnOptions
}

func (m *mockAgent) Name() string           { return m.name }
func (m *mockAgent) ConversationID() string { return m.convID }

func (m *mockAgent) Respond(ctx context.Context, input any, opts agent.TurnOptions) (domain.Message, error) {
	m.calls++
	m.lastIn = input
	m.lastOpts = opts
	if m.err != nil {
		return domain.Message{}, m.err
	}
	return domain.NewAssistantMessage(m.name, m.reply), nil
}

func newMockAgent(reply string) *mockAgent {
	return &mockAgent{name: "scientist", convID: "conv-test", reply: reply}
}

// --- Turns ---

func TestTurns_Ask_ReturnsReply(t *testing.T) {
	ma := newMockAgent("attention weighs context tokens")
	turns := NewTurns(ma, nil, testChannelLogger())

	reply, err := turns.Ask(context.Background(), "cli", "cli-user", "What is attention?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if reply != "attention weighs context tokens" {
		t.Fatalf("expected mock reply, got %q", reply)
	}
	if ma.calls != 1 {
		t.Fatalf("expected 1 turn, got %d", ma.calls)
	}
}

func TestTurns_Ask_PassesUserMessage(t *testing.T) {
	ma := newMockAgent("ok")
	turns := NewTurns(ma, nil, testChannelLogger())

	if _, err := turns.Ask(context.Background(), "slack", "U123", "hello"); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	msg, ok := ma.lastIn.(domain.Message)
	if !ok {
		t.Fatalf("expected domain.Message input, got %T", ma.lastIn)
	}
	if msg.Sender != "U123" || msg.Role != domain.RoleUser || msg.Content != "hello" {
		t.Fatalf("unexpected input message: %+v", msg)
	}
	if !ma.lastOpts.UseRetrieval || !ma.lastOpts.UseMemory || !ma.lastOpts.CommitToMemory {
		t.Fatalf("expected default turn options, got %+v", ma.lastOpts)
	}
}

func TestTurns_Ask_PropagatesError(t *testing.T) {
	ma := newMockAgent("")
	ma.err = errors.New("backend down")
	turns := NewTurns(ma, nil, testChannelLogger())

	if _, err := turns.Ask(context.Background(), "cli", "u", "q"); err == nil {
		t.Fatal("expected error from failing turn")
	}
}

func TestTurns_Ask_RecordsUserMessage(t *testing.T) {
	store, err := transcript.NewSQLiteStore(filepath.Join(t.TempDir(), "transcript.db"), testChannelLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	rec := transcript.NewRecorder(store, testChannelLogger())
	ma := newMockAgent("noted")
	turns := NewTurns(ma, rec, testChannelLogger())

	if _, err := turns.Ask(context.Background(), "telegram", "42", "How do transformers work?"); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	conv, err := store.GetConversation(context.Background(), "conv-test")
	if err != nil || conv == nil {
		t.Fatalf("expected conversation created, got %v, %v", conv, err)
	}
	if conv.Channel != "telegram" {
		t.Fatalf("expected channel telegram, got %q", conv.Channel)
	}

	entries, err := store.RecentEntries(context.Background(), "conv-test", 10)
	if err != nil {
		t.Fatalf("RecentEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 recorded entry, got %d", len(entries))
	}
	if entries[0].Content != "How do transformers work?" || entries[0].Role != domain.RoleUser {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

// --- splitMessage ---

func TestSplitMessage_Short(t *testing.T) {
	chunks := splitMessage("short message", 100)
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestSplitMessage_Long(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "word "
	}
	chunks := splitMessage(long, 50)
	if len(chunks) < 2 {
		t.Errorf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 50 {
			t.Errorf("chunk %d too long: %d", i, len(c))
		}
	}
}

func TestSplitMessage_PrefersNewline(t *testing.T) {
	msg := strings.Repeat("a", 40) + "\n" + strings.Repeat("b", 40)
	chunks := splitMessage(msg, 50)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "\n") {
		t.Errorf("expected first chunk to end at the newline, got %q", chunks[0])
	}
}

func TestSplitMessage_Empty(t *testing.T) {
	chunks := splitMessage("", 100)
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk for empty, got %d", len(chunks))
	}
}

// --- CLI ---

func TestCLI_AnswersAndQuits(t *testing.T) {
	ma := newMockAgent("attention is a weighting scheme")
	turns := NewTurns(ma, nil, testChannelLogger())

	in := strings.NewReader("What is attention?\n/quit\n")
	out := &bytes.Buffer{}
	cli := NewCLI(CLIConfig{Turns: turns, Logger: testChannelLogger(), In: in, Out: out})

	if err := cli.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "attention is a weighting scheme") {
		t.Errorf("expected reply in output, got %q", got)
	}
	if !strings.Contains(got, "--- scientist ---") {
		t.Errorf("expected agent banner in output, got %q", got)
	}
	if ma.calls != 1 {
		t.Errorf("expected 1 turn, got %d", ma.calls)
	}
}

func TestCLI_SkipsBlankLines(t *testing.T) {
	ma := newMockAgent("hi")
	turns := NewTurns(ma, nil, testChannelLogger())

	in := strings.NewReader("\n   \n/quit\n")
	out := &bytes.Buffer{}
	cli := NewCLI(CLIConfig{Turns: turns, Logger: testChannelLogger(), In: in, Out: out})

	if err := cli.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ma.calls != 0 {
		t.Errorf("expected no turns for blank input, got %d", ma.calls)
	}
}

func TestCLI_PrintsTurnError(t *testing.T) {
	ma := newMockAgent("")
	ma.err = errors.New("workspace unavailable")
	turns := NewTurns(ma, nil, testChannelLogger())

	in := strings.NewReader("anything\n/quit\n")
	out := &bytes.Buffer{}
	cli := NewCLI(CLIConfig{Turns: turns, Logger: testChannelLogger(), In: in, Out: out})

	if err := cli.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !strings.Contains(out.String(), "error: ") {
		t.Errorf("expected error line in output, got %q", out.String())
	}
}
