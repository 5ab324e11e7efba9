package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/comigor/conner-go/internal/chat"
	"github.com/comigor/conner-go/internal/logger"
)

// storedSession mirrors chat.Session but keeps messages raw so a single
// bad message does not cost the whole record.
type storedSession struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Messages     []json.RawMessage `json:"messages"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	MessageCount int               `json:"messageCount"`
}

func decodeSessions(data []byte) []chat.Session {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		logger.L.Warn("discarding unreadable session list", "error", err)
		return nil
	}
	out := make([]chat.Session, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for i, raw := range raws {
		var rec storedSession
		if err := json.Unmarshal(raw, &rec); err != nil {
			logger.L.Warn("dropping unreadable session record", "index", i, "error", err)
			continue
		}
		if strings.TrimSpace(rec.ID) == "" {
			logger.L.Warn("dropping session record without id", "index", i)
			continue
		}
		if seen[rec.ID] {
			logger.L.Warn("dropping duplicate session record", "session", rec.ID)
			continue
		}
		seen[rec.ID] = true
		out = append(out, repairSession(rec))
	}
	return out
}

func repairSession(rec storedSession) chat.Session {
	sess := chat.Session{
		ID:        rec.ID,
		Title:     rec.Title,
		Messages:  decodeMessages(rec.ID, rec.Messages),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	sess.MessageCount = len(sess.Messages)
	if rec.MessageCount != sess.MessageCount {
		logger.L.Warn("repaired session message count", "session", rec.ID, "stored", rec.MessageCount, "actual", sess.MessageCount)
	}
	if strings.TrimSpace(sess.Title) == "" {
		sess.Title = chat.FallbackTitle
	}
	if sess.CreatedAt.IsZero() && len(sess.Messages) > 0 {
		sess.CreatedAt = sess.Messages[0].Timestamp
	}
	if sess.UpdatedAt.Before(sess.CreatedAt) {
		logger.L.Warn("repaired session updatedAt before createdAt", "session", rec.ID)
		sess.UpdatedAt = sess.CreatedAt
	}
	return sess
}

func decodeMessages(owner string, raws []json.RawMessage) []chat.Message {
	out := make([]chat.Message, 0, len(raws))
	for i, raw := range raws {
		var m chat.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			logger.L.Warn("dropping unreadable message", "owner", owner, "index", i, "error", err)
			continue
		}
		if !m.Role.Valid() || m.Timestamp.IsZero() {
			logger.L.Warn("dropping malformed message", "owner", owner, "index", i, "role", m.Role)
			continue
		}
		out = append(out, m)
	}
	return out
}
