package bus

import (
	"log/slog"
	"os"
	"sync/atomic"
	"testing"

	"paperbot/internal/domain"
)

func testBusLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func spoken(content string) domain.SpokenMessage {
	return domain.SpokenMessage{
		Message: domain.NewAssistantMessage("scientist", content),
		Mode:    domain.ModeChat,
	}
}

func TestBus_PublishAndReceive(t *testing.T) {
	b := New(testBusLogger())

	var received int32
	b.Subscribe("test", func(msg domain.SpokenMessage) {
		atomic.AddInt32(&received, 1)
	})

	b.Publish(spoken("hello"))

	if atomic.LoadInt32(&received) != 1 {
		t.Errorf("expected 1 message received, got %d", received)
	}
}

func TestBus_FanOut(t *testing.T) {
	b := New(testBusLogger())

	var count int32
	b.Subscribe("first", func(msg domain.SpokenMessage) { atomic.AddInt32(&count, 1) })
	b.Subscribe("second", func(msg domain.SpokenMessage) { atomic.AddInt32(&count, 1) })

	b.Publish(spoken("to everyone"))

	if atomic.LoadInt32(&count) != 2 {
		t.Errorf("expected both subscribers called, got %d", count)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New(testBusLogger())

	var count int32
	b.Subscribe("temp", func(msg domain.SpokenMessage) { atomic.AddInt32(&count, 1) })

	b.Publish(spoken("one"))
	b.Unsubscribe("temp")
	b.Publish(spoken("two"))

	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("expected 1 after unsubscribe, got %d", count)
	}
}

func TestBus_ResubscribeReplaces(t *testing.T) {
	b := New(testBusLogger())

	var first, second int32
	b.Subscribe("same", func(msg domain.SpokenMessage) { atomic.AddInt32(&first, 1) })
	b.Subscribe("same", func(msg domain.SpokenMessage) { atomic.AddInt32(&second, 1) })

	b.Publish(spoken("x"))

	if atomic.LoadInt32(&first) != 0 {
		t.Error("replaced handler should not fire")
	}
	if atomic.LoadInt32(&second) != 1 {
		t.Errorf("expected replacement handler to fire once, got %d", second)
	}
}

func TestBus_PanickingSubscriberIsolated(t *testing.T) {
	b := New(testBusLogger())

	var survived int32
	b.Subscribe("bad", func(msg domain.SpokenMessage) { panic("boom") })
	b.Subscribe("good", func(msg domain.SpokenMessage) { atomic.AddInt32(&survived, 1) })

	b.Publish(spoken("x"))

	if atomic.LoadInt32(&survived) != 1 {
		t.Error("panic in one subscriber must not starve the others")
	}
}

func TestBus_Recent(t *testing.T) {
	b := New(testBusLogger())

	b.Publish(spoken("first"))
	b.Publish(spoken("second"))
	b.Publish(spoken("third"))

	recent := b.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(recent))
	}
	if recent[0].Message.Content != "second" || recent[1].Message.Content != "third" {
		t.Errorf("expected the last two in order, got %q then %q",
			recent[0].Message.Content, recent[1].Message.Content)
	}
}

func TestBus_RecentBeyondHistory(t *testing.T) {
	b := New(testBusLogger())
	b.Publish(spoken("only"))

	recent := b.Recent(10)
	if len(recent) != 1 {
		t.Errorf("expected 1 message, got %d", len(recent))
	}
}

func TestBus_PublishAfterClose(t *testing.T) {
	b := New(testBusLogger())

	var count int32
	b.Subscribe("test", func(msg domain.SpokenMessage) { atomic.AddInt32(&count, 1) })
	b.Close()
	b.Publish(spoken("dropped"))

	if atomic.LoadInt32(&count) != 0 {
		t.Error("publish after close must be a no-op")
	}
}
