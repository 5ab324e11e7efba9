package chat

import (
	"sort"
	"time"
)

const (
	// FallbackTitle is used when a transcript has no user message to derive a title from.
	FallbackTitle = "Conversation"
	// NewSessionTitle is used by the registry when a session is saved without a title.
	NewSessionTitle = "New Conversation"
)

// Session is the durable record of a conversation.
type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}

// Clone returns a copy of s whose message slice is not shared.
func (s Session) Clone() Session {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	return out
}

// SortByRecent orders sessions by UpdatedAt, newest first.
func SortByRecent(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
}
