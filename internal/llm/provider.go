package llm

import (
	"context"
	"encoding/json"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleDeveloper Role = "developer"
)

// Valid reports whether r is one of the roles the provider accepts.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleDeveloper:
		return true
	}
	return false
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Completion is a single non-streaming provider response.
type Completion struct {
	// Raw is the provider's response body as received.
	Raw     json.RawMessage
	Model   string
	Content string
}

// MarshalJSON re-emits the provider payload verbatim.
func (c Completion) MarshalJSON() ([]byte, error) {
	if len(c.Raw) > 0 {
		return c.Raw, nil
	}
	return json.Marshal(map[string]any{"model": c.Model, "content": c.Content})
}

// Completer sends an ordered conversation and returns one response.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (*Completion, error)
}

// CompletionError wraps any failure talking to the completion provider.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string { return "completion: " + e.Err.Error() }
func (e *CompletionError) Unwrap() error { return e.Err }
