package chat

import (
	"errors"
	"fmt"
)

// SystemPrompt is sent ahead of every conversation.
const SystemPrompt = "You are a helpful assistant. Always prefer to give inline CSS and HTML code."

// MaxHistory caps how many stored exchanges a history listing returns.
const MaxHistory = 20

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var (
	ErrNoMessages  = errors.New("no messages array in request body")
	ErrInvalidRole = errors.New("invalid message role")
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is the body of POST /chat.
type Request struct {
	Messages []Message `json:"messages"`
}

// Validate checks the conversation before anything is sent to a provider.
func (r Request) Validate() error {
	if len(r.Messages) == 0 {
		return ErrNoMessages
	}
	for i, m := range r.Messages {
		switch m.Role {
		case RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message %d: %w %q", i, ErrInvalidRole, m.Role)
		}
	}
	return nil
}

// Prompt returns the content of the last user message exactly as sent,
// which is what gets stored as the exchange prompt.
func (r Request) Prompt() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}
