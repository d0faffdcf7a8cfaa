package agent

import (
	"testing"

	"paperbot/internal/domain"
)

// --- PromptAssembly ---

func TestPromptAssembly_RendersLabeledLines(t *testing.T) {
	asm := NewPromptAssembly()
	asm.Append(labelSystem, "be helpful")
	asm.AppendMessage(domain.NewUserMessage("alice", "hi"))
	asm.Append(labelUser, "current ask")

	want := "System: be helpful\nalice: hi\nUser: current ask"
	if got := asm.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPromptAssembly_PreservesInsertionOrder(t *testing.T) {
	asm := NewPromptAssembly()
	asm.Append("a", "1")
	asm.Append("b", "2")
	asm.Append("c", "3")

	lines := asm.Lines()
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "a: 1" || lines[1] != "b: 2" || lines[2] != "c: 3" {
		t.Fatalf("order not preserved: %v", lines)
	}
}

func TestPromptAssembly_Empty(t *testing.T) {
	asm := NewPromptAssembly()
	if asm.Len() != 0 {
		t.Fatalf("expected empty assembly, got %d lines", asm.Len())
	}
	if asm.String() != "" {
		t.Fatalf("expected empty render, got %q", asm.String())
	}
}
