// Package domain contains core domain types for The Blank Page.
package domain

import (
	"errors"
	"fmt"
)

// Message roles. Only user and assistant messages exist; the system
// instruction is fixed server-side and never part of a transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in a conversation transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Transcript is the ordered user/assistant message history of one
// conversation. Append-only while the session is live; immutable once
// the session is saved or ended.
type Transcript []Message

// ErrEmptyTranscript is returned when an operation requires at least one message.
var ErrEmptyTranscript = errors.New("transcript is empty")

// Validate checks that the transcript is a well-formed ordered sequence of
// role/content pairs.
func (t Transcript) Validate() error {
	if len(t) == 0 {
		return ErrEmptyTranscript
	}
	for i, m := range t {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
		if m.Content == "" {
			return fmt.Errorf("message %d: empty content", i)
		}
	}
	return nil
}
