package chat

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"missing messages", `{}`, ErrNoMessages},
		{"empty messages", `{"messages":[]}`, ErrNoMessages},
		{"bad role", `{"messages":[{"role":"system","content":"x"}]}`, ErrInvalidRole},
		{"ok", `{"messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"},{"role":"user","content":"again"}]}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			err := req.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRequestPrompt(t *testing.T) {
	req := Request{Messages: []Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "  make a red button \n"},
	}}
	if got := req.Prompt(); got != "  make a red button \n" {
		t.Errorf("expected last user content verbatim, got %q", got)
	}
	trailing := Request{Messages: []Message{
		{Role: RoleUser, Content: "question"},
		{Role: RoleAssistant, Content: "answer"},
	}}
	if got := trailing.Prompt(); got != "question" {
		t.Errorf("expected last user message, got %q", got)
	}
	if got := (Request{}).Prompt(); got != "" {
		t.Errorf("expected empty prompt, got %q", got)
	}
}
