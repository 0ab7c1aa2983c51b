// Package domain contains the core business entities and value objects.
package domain

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single (role, content) entry in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is an ordered sequence of conversation turns, oldest first.
// Histories are request-scoped; they are never shared across requests.
type History []Turn

// Truncate returns the most recent max turns. The receiver is not modified;
// the returned slice aliases the tail of the original.
func (h History) Truncate(max int) History {
	if max <= 0 || len(h) <= max {
		if max <= 0 {
			return nil
		}
		return h
	}
	return h[len(h)-max:]
}
