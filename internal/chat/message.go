// Package chat holds the conversation data model shared by storage, the
// session registry and the conversation controller.
package chat

import (
	"strings"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single conversational turn. Messages are immutable once
// appended to a transcript.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsError   bool      `json:"isError,omitempty"`
}

// Equal compares two messages by role, content, instant and error flag.
// Timestamps are compared as instants so a re-encoded time still matches.
func (m Message) Equal(o Message) bool {
	return m.Role == o.Role &&
		m.Content == o.Content &&
		m.IsError == o.IsError &&
		m.Timestamp.Equal(o.Timestamp)
}

// NewUserMessage builds a user turn stamped at now.
func NewUserMessage(content string, now time.Time) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: now.UTC()}
}

// NewAssistantMessage builds an assistant turn stamped at ts.
func NewAssistantMessage(content string, ts time.Time) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: ts.UTC()}
}

// EqualMessages reports whether a and b hold the same messages in the same order.
func EqualMessages(a, b []Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Window returns the trailing n messages of msgs, oldest first.
func Window(msgs []Message, n int) []Message {
	if n <= 0 || len(msgs) == 0 {
		return nil
	}
	if n > len(msgs) {
		n = len(msgs)
	}
	out := make([]Message, n)
	copy(out, msgs[len(msgs)-n:])
	return out
}

const titleLength = 30

// DefaultTitle derives a session title from the first user message with
// non-blank content, trimmed of surrounding whitespace and truncated to 30
// characters. fallback is used when there is no such message.
func DefaultTitle(msgs []Message, fallback string) string {
	for _, m := range msgs {
		if m.Role != RoleUser {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		runes := []rune(content)
		if len(runes) > titleLength {
			runes = runes[:titleLength]
		}
		return string(runes)
	}
	return fallback
}
