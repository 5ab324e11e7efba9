// Package store is the persistent key-value store behind conversations,
// sessions, the user account and settings.
// The sqlite file is opened eagerly; if that fails the store falls back to
// in-memory storage so the client keeps working for the current run.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/comigor/conner-go/internal/logger"
	"github.com/comigor/conner-go/internal/metrics"
)

// Logical keys, one record each.
const (
	KeyUserAccount          = "conner_userAccount"
	KeyChatHistory          = "conner_chatHistory"
	KeyConversationSessions = "conner_conversationSessions"
	KeyCurrentSession       = "conner_currentSession"
	KeyCurrentUser          = "conner_currentUser"
	KeySessionSettings      = "conner_sessionSettings"
	KeyLastLogin            = "conner_lastLogin"
)

// AllKeys lists every key the store owns.
var AllKeys = []string{
	KeyUserAccount,
	KeyChatHistory,
	KeyConversationSessions,
	KeyCurrentSession,
	KeyCurrentUser,
	KeySessionSettings,
	KeyLastLogin,
}

var (
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrClosed        = errors.New("store closed")
)

// Error is a storage failure on one key.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// DefaultMaxValueBytes mirrors the per-origin quota of browser local storage.
const DefaultMaxValueBytes = 5 << 20

// Store wraps a Backend with typed, validated records.
type Store struct {
	backend       Backend
	maxValueBytes int
	persistent    bool
}

// Option configures a Store.
type Option func(*Store)

// WithMaxValueBytes caps the encoded size of a single record. Zero or a
// negative value disables the cap.
func WithMaxValueBytes(n int) Option {
	return func(s *Store) { s.maxValueBytes = n }
}

// New wraps an existing backend.
func New(b Backend, opts ...Option) *Store {
	s := &Store{backend: b, maxValueBytes: DefaultMaxValueBytes}
	if _, ok := b.(*SQLite); ok {
		s.persistent = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens the sqlite store at path, falling back to memory on failure.
func Open(path string, opts ...Option) *Store {
	db, err := OpenSQLite(path)
	if err != nil {
		logger.L.Warn("sqlite open failed; using in-memory store", "path", path, "error", err)
		return New(NewMemory(), opts...)
	}
	logger.L.Info("sqlite store initialized", "path", path)
	return New(db, opts...)
}

// Persistent reports whether records survive a restart.
func (s *Store) Persistent() bool { return s.persistent }

// Close releases the backend.
func (s *Store) Close() error { return s.backend.Close() }

func (s *Store) fail(op, key string, err error) error {
	metrics.StorageFailures.WithLabelValues(op).Inc()
	logger.L.Error("storage operation failed", "op", op, "key", key, "error", err)
	return &Error{Op: op, Key: key, Err: err}
}

func (s *Store) getRaw(key string) ([]byte, bool, error) {
	v, ok, err := s.backend.Get(key)
	if err != nil {
		return nil, false, s.fail("read", key, err)
	}
	return v, ok, nil
}

func (s *Store) putRaw(key string, value []byte) error {
	if s.maxValueBytes > 0 && len(value) > s.maxValueBytes {
		return s.fail("write", key, ErrQuotaExceeded)
	}
	if err := s.backend.Put(key, value); err != nil {
		return s.fail("write", key, err)
	}
	return nil
}

func (s *Store) putJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return s.fail("encode", key, err)
	}
	return s.putRaw(key, data)
}

func (s *Store) remove(key string) error {
	if err := s.backend.Delete(key); err != nil {
		return s.fail("delete", key, err)
	}
	return nil
}

// ClearAll removes every record the store owns. All keys are attempted;
// the first failure is returned.
func (s *Store) ClearAll() error {
	var first error
	for _, key := range AllKeys {
		if err := s.remove(key); err != nil && first == nil {
			first = err
		}
	}
	return first
}
