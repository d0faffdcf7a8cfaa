package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"paperbot/internal/domain"
	"paperbot/internal/metrics"
)

// Summarization instructions. The with-context variant is used whenever a
// history group is supplied, even an empty one.
const (
	summarizeWithContextInstruction = "Based on the context above, summarize the following content in a concise manner, capturing the key points of the content and any important decisions or actions discussed. Do not summarize repeated content which is already existed in the context above!"
	summarizePlainInstruction       = "Summarize the following content in a concise manner, capturing the key points of the content and any important decisions or actions discussed."
)

// TurnOptions are the per-turn flags of Respond.
type TurnOptions struct {
	// UseRetrieval selects the retrieval-enabled chat mode instead of the
	// direct query mode.
	UseRetrieval bool
	// UseMemory renders the recent memory window into the prompt.
	UseMemory bool
	// CommitToMemory appends the generated response to memory. The input is
	// always remembered regardless.
	CommitToMemory bool
}

// DefaultTurnOptions enables retrieval, memory and commit, matching a plain
// conversational exchange.
func DefaultTurnOptions() TurnOptions {
	return TurnOptions{UseRetrieval: true, UseMemory: true, CommitToMemory: true}
}

// Agent owns one conversation loop: it turns an input plus accumulated
// memory into a single prompt, dispatches it, and records the outcome. One
// turn runs start-to-finish before the next begins.
type Agent struct {
	name         string
	systemPrompt string
	backend      domain.Backend
	memory       *MemoryWindow
	bus          domain.SpokenBus
	logger       *slog.Logger
	convID       string

	mu sync.Mutex
}

// Config configures an Agent.
type Config struct {
	Name         string
	SystemPrompt string
	Backend      domain.Backend
	// MemoryLimit caps retained memory entries; 0 keeps everything.
	MemoryLimit int
	Bus         domain.SpokenBus
	Logger      *slog.Logger
	// ConversationID labels spoken messages for transcript grouping. A fresh
	// ID is generated when empty.
	ConversationID string
}

// New creates an agent with an empty memory window.
func New(cfg Config) (*Agent, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("agent %s: backend is required", cfg.Name)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConversationID == "" {
		cfg.ConversationID = uuid.NewString()
	}
	return &Agent{
		name:         cfg.Name,
		systemPrompt: cfg.SystemPrompt,
		backend:      cfg.Backend,
		memory:       NewMemoryWindow(cfg.MemoryLimit),
		bus:          cfg.Bus,
		logger:       cfg.Logger.With("agent", cfg.Name),
		convID:       cfg.ConversationID,
	}, nil
}

func (a *Agent) Name() string { return a.name }

// ConversationID returns the transcript grouping ID for this agent.
func (a *Agent) ConversationID() string { return a.convID }

// Healthy probes the configured backend.
func (a *Agent) Healthy(ctx context.Context) error { return a.backend.Healthy(ctx) }

// MemoryLen returns how many entries the memory window currently holds.
func (a *Agent) MemoryLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.memory.Len()
}

// RecentMemory returns a copy of the most recent n memory entries.
func (a *Agent) RecentMemory(n int) []domain.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.memory.Recent(n)
}

// Respond runs one turn: normalize the input, assemble the prompt, dispatch
// in the selected mode, speak the result, then commit memory. input may be a
// domain.Message, a []domain.Message, or nil for an input-less turn.
//
// Memory is only mutated after a successful dispatch: the input is appended
// unconditionally, the response only when opts.CommitToMemory is set.
func (a *Agent) Respond(ctx context.Context, input any, opts TurnOptions) (domain.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	inputs, err := domain.NormalizeMessages(input)
	if err != nil {
		return domain.Message{}, err
	}
	query := joinContents(inputs)

	asm := NewPromptAssembly()
	asm.Append(labelSystem, a.systemPrompt)
	if opts.UseMemory {
		for _, m := range a.memory.Recent(recentWindow) {
			asm.AppendMessage(m)
		}
	}
	if query != "" {
		asm.Append(labelUser, query)
	}

	mode := domain.ModeFor(opts.UseRetrieval)
	out, latency, err := a.dispatch(ctx, asm, mode)
	if err != nil {
		return domain.Message{}, err
	}

	a.memory.Append(inputs...)
	if opts.CommitToMemory {
		a.memory.Append(out)
	}
	metrics.MemoryEntries.Set(int64(a.memory.Len()))

	a.logger.Info("turn completed",
		"mode", mode,
		"duration_ms", latency.Milliseconds(),
		"response_len", len(out.Content),
	)
	return out, nil
}

// Summarize condenses content, optionally framed by history so the backend
// can avoid repeating what the conversation already covered. Always runs in
// query mode and never touches memory.
func (a *Agent) Summarize(ctx context.Context, history, content any) (domain.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	asm := NewPromptAssembly()
	if history != nil {
		msgs, err := domain.NormalizeMessages(history)
		if err != nil {
			return domain.Message{}, err
		}
		for _, m := range msgs {
			asm.AppendMessage(m)
		}
		asm.Append(labelSystem, summarizeWithContextInstruction)
	} else {
		asm.Append(labelSystem, summarizePlainInstruction)
	}
	if content != nil {
		msgs, err := domain.NormalizeMessages(content)
		if err != nil {
			return domain.Message{}, err
		}
		for _, m := range msgs {
			asm.AppendMessage(m)
		}
	}

	out, latency, err := a.dispatch(ctx, asm, domain.ModeQuery)
	if err != nil {
		return domain.Message{}, err
	}

	a.logger.Info("summary completed",
		"duration_ms", latency.Milliseconds(),
		"response_len", len(out.Content),
	)
	return out, nil
}

// dispatch sends the assembled prompt to the backend and speaks the reply.
func (a *Agent) dispatch(ctx context.Context, asm *PromptAssembly, mode domain.Mode) (domain.Message, time.Duration, error) {
	start := time.Now()
	resp, err := a.backend.Generate(ctx, domain.GenerationRequest{
		Prompt: asm.String(),
		Mode:   mode,
	})
	latency := time.Since(start)
	metrics.BackendLatency.Observe(latency.Seconds())
	if err != nil {
		metrics.TurnErrors.Inc()
		a.logger.Error("turn failed", "mode", mode, "error", err)
		return domain.Message{}, latency, fmt.Errorf("dispatch turn: %w", err)
	}
	countTurn(mode)

	out := domain.NewAssistantMessage(a.name, resp.Text)
	a.speak(out, mode, latency)
	return out, latency, nil
}

func (a *Agent) speak(msg domain.Message, mode domain.Mode, latency time.Duration) {
	if a.bus == nil {
		return
	}
	a.bus.Publish(domain.SpokenMessage{
		Message:        msg,
		ConversationID: a.convID,
		Mode:           mode,
		LatencyMs:      latency.Milliseconds(),
	})
}

func countTurn(mode domain.Mode) {
	if mode == domain.ModeChat {
		metrics.TurnsChat.Inc()
		return
	}
	metrics.TurnsQuery.Inc()
}

// joinContents merges normalized input contents into the effective query
// text. Absent input yields the empty query.
func joinContents(msgs []domain.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n")
}
