// Package session implements the registry of durable conversation sessions.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comigor/conner-go/internal/chat"
	"github.com/comigor/conner-go/internal/logger"
	"github.com/comigor/conner-go/internal/store"
)

// DefaultCap is the number of sessions retained.
const DefaultCap = 50

// Registry creates, updates, lists and deletes session records in the store.
// Every mutation is a single read-modify-write of the session list.
type Registry struct {
	store *store.Store
	cap   int
	now   func() time.Time
	newID func() string

	mu     sync.Mutex
	prints map[string]fingerprint
}

// Option configures a Registry.
type Option func(*Registry)

// WithCap overrides the retained-session cap.
func WithCap(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.cap = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) { r.newID = gen }
}

// NewRegistry returns a registry backed by st.
func NewRegistry(st *store.Store, opts ...Option) *Registry {
	r := &Registry{
		store:  st,
		cap:    DefaultCap,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		prints: make(map[string]fingerprint),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save upserts sess by id, generating one when empty, and returns the id.
// UpdatedAt is set to now and MessageCount to len(Messages). Title and
// CreatedAt fall back to the stored record when left empty.
func (r *Registry) Save(sess chat.Session) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.store.Sessions()
	if err != nil {
		return "", err
	}

	if sess.ID == "" {
		sess.ID = r.newID()
	}
	idx := indexOf(sessions, sess.ID)

	now := r.now()
	if strings.TrimSpace(sess.Title) == "" {
		if idx >= 0 {
			sess.Title = sessions[idx].Title
		} else {
			sess.Title = chat.NewSessionTitle
		}
	}
	if sess.CreatedAt.IsZero() {
		if idx >= 0 {
			sess.CreatedAt = sessions[idx].CreatedAt
		} else {
			sess.CreatedAt = now
		}
	}
	sess.Messages = append([]chat.Message{}, sess.Messages...)
	sess.MessageCount = len(sess.Messages)
	sess.UpdatedAt = now
	if sess.UpdatedAt.Before(sess.CreatedAt) {
		sess.UpdatedAt = sess.CreatedAt
	}

	if idx >= 0 {
		sessions[idx] = sess
	} else {
		sessions = append(sessions, sess)
	}
	delete(r.prints, sess.ID)
	// Trim on raw list order, not recency.
	if len(sessions) > r.cap {
		for _, evicted := range sessions[:len(sessions)-r.cap] {
			delete(r.prints, evicted.ID)
			logger.L.Debug("evicting session over cap", "session", evicted.ID)
		}
		sessions = sessions[len(sessions)-r.cap:]
	}

	if err := r.store.SaveSessions(sessions); err != nil {
		return "", err
	}
	return sess.ID, nil
}

// UpdateMessages replaces the messages of session id, keeping the stored
// title and createdAt. It reports false when there is no such session.
func (r *Registry) UpdateMessages(id string, msgs []chat.Message) (bool, error) {
	return r.updateMessages(id, func(stored []chat.Message) []chat.Message {
		return append([]chat.Message{}, msgs...)
	})
}

// AppendMessages appends msgs to the stored messages of session id. It
// reports false when there is no such session.
func (r *Registry) AppendMessages(id string, msgs ...chat.Message) (bool, error) {
	return r.updateMessages(id, func(stored []chat.Message) []chat.Message {
		return append(append([]chat.Message{}, stored...), msgs...)
	})
}

// updateMessages is a single read-modify-write of the session list, so a
// concurrent Rename is never overwritten.
func (r *Registry) updateMessages(id string, edit func([]chat.Message) []chat.Message) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.store.Sessions()
	if err != nil {
		return false, err
	}
	idx := indexOf(sessions, id)
	if idx < 0 {
		return false, nil
	}
	sess := &sessions[idx]
	sess.Messages = edit(sess.Messages)
	sess.MessageCount = len(sess.Messages)
	sess.UpdatedAt = r.now()
	if sess.UpdatedAt.Before(sess.CreatedAt) {
		sess.UpdatedAt = sess.CreatedAt
	}
	delete(r.prints, id)
	if err := r.store.SaveSessions(sessions); err != nil {
		return false, err
	}
	return true, nil
}

// List returns every session in stored order.
func (r *Registry) List() ([]chat.Session, error) {
	return r.store.Sessions()
}

// Recent returns every session ordered by UpdatedAt, newest first.
func (r *Registry) Recent() ([]chat.Session, error) {
	sessions, err := r.store.Sessions()
	if err != nil {
		return nil, err
	}
	chat.SortByRecent(sessions)
	return sessions, nil
}

// Get returns the session with id, or nil when there is none.
func (r *Registry) Get(id string) (*chat.Session, error) {
	sessions, err := r.store.Sessions()
	if err != nil {
		return nil, err
	}
	if idx := indexOf(sessions, id); idx >= 0 {
		s := sessions[idx]
		return &s, nil
	}
	return nil, nil
}

// Delete removes the session with id. Deleting an unknown id is a no-op.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.store.Sessions()
	if err != nil {
		return err
	}
	idx := indexOf(sessions, id)
	if idx < 0 {
		return nil
	}
	sessions = append(sessions[:idx], sessions[idx+1:]...)
	delete(r.prints, id)
	return r.store.SaveSessions(sessions)
}

// Rename sets the title of session id. A blank title or unknown id is a no-op.
func (r *Registry) Rename(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.store.Sessions()
	if err != nil {
		return err
	}
	idx := indexOf(sessions, id)
	if idx < 0 {
		return nil
	}
	sessions[idx].Title = title
	sessions[idx].UpdatedAt = r.now()
	if sessions[idx].UpdatedAt.Before(sessions[idx].CreatedAt) {
		sessions[idx].UpdatedAt = sessions[idx].CreatedAt
	}
	return r.store.SaveSessions(sessions)
}

// ClearAll removes every session and the current-session pointer.
func (r *Registry) ClearAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prints = make(map[string]fingerprint)
	return r.store.ClearSessions()
}

func indexOf(sessions []chat.Session, id string) int {
	for i := range sessions {
		if sessions[i].ID == id {
			return i
		}
	}
	return -1
}
