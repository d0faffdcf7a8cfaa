package domain

import (
	"context"
	"fmt"
)

// Mode selects how the backend treats a request: "chat" permits document
// retrieval, "query" is retrieval-free.
type Mode string

const (
	ModeChat  Mode = "chat"
	ModeQuery Mode = "query"
)

// ParseMode validates a raw mode string against the closed set.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeChat, ModeQuery:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// ModeFor maps the retrieval flag to a generation mode. Pure mapping, no
// other inputs.
func ModeFor(useRetrieval bool) Mode {
	if useRetrieval {
		return ModeChat
	}
	return ModeQuery
}

// BackendKind tags the concrete backend variant. Construction always yields
// one concrete kind; callers never branch on a nil client.
type BackendKind string

const (
	KindWorkspace BackendKind = "workspace"
	KindDirect    BackendKind = "direct"
)

// GenerationRequest carries one assembled prompt to a backend.
type GenerationRequest struct {
	Prompt string
	Mode   Mode
}

// Source is one retrieved document chunk referenced by a response.
type Source struct {
	Title string  `json:"title,omitempty"`
	Chunk string  `json:"chunk,omitempty"`
	Score float64 `json:"score,omitempty"`
}

// GenerationResponse is the backend's answer to a single request.
type GenerationResponse struct {
	Text    string
	Sources []Source
}

// Backend is the generation capability the orchestrator dispatches to.
// Both variants are substitutable at the call site.
type Backend interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResponse, error)
	Name() string
	Kind() BackendKind
	Healthy(ctx context.Context) error
}
