package agent

import "paperbot/internal/domain"

// recentWindow is how many memory entries the turn path renders into the
// prompt.
const recentWindow = 2

// MemoryWindow is an append-only conversation log owned by a single agent.
// It is not internally synchronized; the agent serializes turns, and any
// other caller owns its own discipline.
type MemoryWindow struct {
	entries []domain.Message
	limit   int
}

// NewMemoryWindow creates an empty window. limit caps how many entries are
// retained, trimming the oldest on append; 0 means unbounded.
func NewMemoryWindow(limit int) *MemoryWindow {
	return &MemoryWindow{limit: limit}
}

// Append adds messages in order, then applies the retention limit.
func (w *MemoryWindow) Append(msgs ...domain.Message) {
	if len(msgs) == 0 {
		return
	}
	w.entries = append(w.entries, msgs...)
	if w.limit > 0 && len(w.entries) > w.limit {
		w.entries = w.entries[len(w.entries)-w.limit:]
	}
}

// Recent returns a copy of the most recent n entries in original order.
// It never mutates the window; reading twice without an intervening append
// yields identical content.
func (w *MemoryWindow) Recent(n int) []domain.Message {
	if n <= 0 || len(w.entries) == 0 {
		return nil
	}
	if n > len(w.entries) {
		n = len(w.entries)
	}
	out := make([]domain.Message, n)
	copy(out, w.entries[len(w.entries)-n:])
	return out
}

// Len returns the number of retained entries.
func (w *MemoryWindow) Len() int { return len(w.entries) }
