package session

import (
	"crypto/sha256"
	"strconv"
	"time"

	"github.com/comigor/conner-go/internal/chat"
)

// fingerprint identifies a message list. It is cached per session and
// invalidated whenever the session's updatedAt or count changes.
type fingerprint struct {
	updatedAt time.Time
	count     int
	sum       [sha256.Size]byte
}

func sumMessages(msgs []chat.Message) [sha256.Size]byte {
	h := sha256.New()
	var buf []byte
	for _, m := range msgs {
		buf = buf[:0]
		buf = append(buf, string(m.Role)...)
		buf = append(buf, 0)
		buf = strconv.AppendInt(buf, int64(len(m.Content)), 10)
		buf = append(buf, ':')
		buf = append(buf, m.Content...)
		buf = append(buf, 0)
		buf = append(buf, m.Timestamp.UTC().Format(time.RFC3339Nano)...)
		buf = append(buf, 0)
		buf = strconv.AppendBool(buf, m.IsError)
		buf = append(buf, '\n')
		h.Write(buf)
	}
	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// FindByMessages returns the id of a stored session whose messages are
// identical to msgs. Sessions are pre-filtered by count and first-message
// instant before fingerprints are compared.
func (r *Registry) FindByMessages(msgs []chat.Message) (string, bool, error) {
	if len(msgs) == 0 {
		return "", false, nil
	}
	sessions, err := r.store.Sessions()
	if err != nil {
		return "", false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var want *[sha256.Size]byte
	for _, s := range sessions {
		if len(s.Messages) != len(msgs) || !s.Messages[0].Timestamp.Equal(msgs[0].Timestamp) {
			continue
		}
		if want == nil {
			sum := sumMessages(msgs)
			want = &sum
		}
		if r.sessionPrint(s) == *want && chat.EqualMessages(s.Messages, msgs) {
			return s.ID, true, nil
		}
	}
	return "", false, nil
}

func (r *Registry) sessionPrint(s chat.Session) [sha256.Size]byte {
	if fp, ok := r.prints[s.ID]; ok && fp.count == len(s.Messages) && fp.updatedAt.Equal(s.UpdatedAt) {
		return fp.sum
	}
	fp := fingerprint{updatedAt: s.UpdatedAt, count: len(s.Messages), sum: sumMessages(s.Messages)}
	r.prints[s.ID] = fp
	return fp.sum
}
