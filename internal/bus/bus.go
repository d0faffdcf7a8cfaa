package bus

import (
	"log/slog"
	"sync"

	"paperbot/internal/domain"
)

// maxHistory bounds the replay buffer for late subscribers.
const maxHistory = 1000

// InMemoryBus fans every spoken message out to all registered subscribers
// and keeps a bounded history so late subscribers (a websocket client
// connecting mid-session) can replay what was already said.
type InMemoryBus struct {
	handlers map[string]func(domain.SpokenMessage)
	history  []domain.SpokenMessage
	mu       sync.RWMutex
	closed   bool
	logger   *slog.Logger
}

// New creates an empty bus.
func New(logger *slog.Logger) *InMemoryBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryBus{
		handlers: make(map[string]func(domain.SpokenMessage)),
		logger:   logger,
	}
}

// Publish delivers msg to every subscriber. Handlers run synchronously on
// the publisher's goroutine; a panicking handler is isolated and logged.
func (b *InMemoryBus) Publish(msg domain.SpokenMessage) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.logger.Warn("attempted to publish to closed bus")
		return
	}
	if len(b.history) >= maxHistory {
		b.history = b.history[1:]
	}
	b.history = append(b.history, msg)

	snapshot := make(map[string]func(domain.SpokenMessage), len(b.handlers))
	for name, handler := range b.handlers {
		snapshot[name] = handler
	}
	b.mu.Unlock()

	for name, handler := range snapshot {
		func(n string, h func(domain.SpokenMessage)) {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("subscriber panic", "subscriber", n, "panic", r)
				}
			}()
			h(msg)
		}(name, handler)
	}
}

// Subscribe registers a named handler. Re-subscribing under the same name
// replaces the previous handler.
func (b *InMemoryBus) Subscribe(name string, handler func(domain.SpokenMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = handler
}

func (b *InMemoryBus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, name)
}

// Recent returns up to n of the most recently published messages, oldest
// first. The returned slice is a copy.
func (b *InMemoryBus) Recent(n int) []domain.SpokenMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 || len(b.history) == 0 {
		return nil
	}
	if n > len(b.history) {
		n = len(b.history)
	}
	out := make([]domain.SpokenMessage, n)
	copy(out, b.history[len(b.history)-n:])
	return out
}

// Close drops all subscribers. Publishing after Close is a no-op.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		b.handlers = make(map[string]func(domain.SpokenMessage))
	}
}
