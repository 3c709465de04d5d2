package types

// Role identifies the conversational role of a context entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry in a generation context.
//
// Downstream providers consume a two-party dialogue framing: exactly one
// leading system message followed by alternating assistant/user entries.
// See conversation.ContextBuilder for how roles are assigned.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
}
