package hermes

import "time"

const (
	// SubjectExchangeStored is published after an exchange is persisted.
	SubjectExchangeStored = "parley.exchange.stored"
	// SubjectStreamFailed is published when a provider stream ends in error.
	SubjectStreamFailed = "parley.stream.failed"
)

type ExchangeStored struct {
	ChatID      string    `json:"chat_id"`
	UserID      string    `json:"user_id"`
	Provider    string    `json:"provider"`
	Truncated   bool      `json:"truncated"`
	ResponseLen int       `json:"response_len"`
	Timestamp   time.Time `json:"timestamp"`
}

type StreamFailed struct {
	UserID    string    `json:"user_id"`
	Provider  string    `json:"provider"`
	Fragments int       `json:"fragments"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}
