package domain

import "fmt"

// Role classifies who a message speaks as. It only affects prompt
// formatting, never authorization.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole validates a raw role string against the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSystem, RoleUser, RoleAssistant:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Message is one immutable unit of conversation.
type Message struct {
	Sender  string `json:"sender"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage builds a user-role message from a sender identity.
func NewUserMessage(sender, content string) Message {
	return Message{Sender: sender, Role: RoleUser, Content: content}
}

// NewAssistantMessage builds an assistant-role message spoken by the agent.
func NewAssistantMessage(sender, content string) Message {
	return Message{Sender: sender, Role: RoleAssistant, Content: content}
}

// NormalizeMessages flattens a variadic mix of Message values, []Message
// slices and nils into one ordered slice. A nil part is skipped, a slice is
// flattened one level, anything else rejects the whole call with
// *TypeMismatchError. Slices are all-or-nothing: one foreign element poisons
// the entire argument rather than being filtered out.
func NormalizeMessages(parts ...any) ([]Message, error) {
	var out []Message
	for _, part := range parts {
		switch v := part.(type) {
		case nil:
			continue
		case Message:
			out = append(out, v)
		case *Message:
			if v == nil {
				continue
			}
			out = append(out, *v)
		case []Message:
			out = append(out, v...)
		case []any:
			flat := make([]Message, 0, len(v))
			for _, elem := range v {
				m, ok := elem.(Message)
				if !ok {
					return nil, &TypeMismatchError{Got: elem}
				}
				flat = append(flat, m)
			}
			out = append(out, flat...)
		default:
			return nil, &TypeMismatchError{Got: part}
		}
	}
	return out, nil
}
