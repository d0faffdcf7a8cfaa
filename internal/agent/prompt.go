package agent

import (
	"strings"

	"paperbot/internal/domain"
)

// Speaker labels for the fixed prompt lines.
const (
	labelSystem = "System"
	labelUser   = "User"
)

// PromptAssembly is the ordered list of speaker-labeled lines built for one
// turn. It is never persisted; it exists only to be rendered into the single
// string sent to the backend. Order is fixed by the caller: system
// instruction, then memory, then the current ask.
type PromptAssembly struct {
	lines []promptLine
}

type promptLine struct {
	label string
	text  string
}

func NewPromptAssembly() *PromptAssembly {
	return &PromptAssembly{}
}

// Append adds one labeled line at the end.
func (p *PromptAssembly) Append(label, text string) {
	p.lines = append(p.lines, promptLine{label: label, text: text})
}

// AppendMessage adds a message rendered under its sender's name.
func (p *PromptAssembly) AppendMessage(m domain.Message) {
	p.Append(m.Sender, m.Content)
}

// Len returns the number of lines assembled so far.
func (p *PromptAssembly) Len() int { return len(p.lines) }

// Lines returns each line rendered as "label: text".
func (p *PromptAssembly) Lines() []string {
	out := make([]string, len(p.lines))
	for i, l := range p.lines {
		out[i] = l.label + ": " + l.text
	}
	return out
}

// String renders the whole assembly as the newline-joined prompt payload.
func (p *PromptAssembly) String() string {
	return strings.Join(p.Lines(), "\n")
}
