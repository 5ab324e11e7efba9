package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/comigor/conner-go/internal/chat"
	"github.com/comigor/conner-go/internal/logger"
)

// Account returns the stored account, or nil when none is stored or the
// record is unreadable.
func (s *Store) Account() (*chat.Account, error) {
	data, ok, err := s.getRaw(KeyUserAccount)
	if err != nil || !ok {
		return nil, err
	}
	var acc chat.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		logger.L.Warn("discarding unreadable account record", "error", err)
		return nil, nil
	}
	if strings.TrimSpace(acc.Email) == "" {
		logger.L.Warn("discarding account record without email")
		return nil, nil
	}
	return &acc, nil
}

// SaveAccount replaces the single stored account.
func (s *Store) SaveAccount(acc chat.Account) error {
	if acc.JoinedDate.IsZero() {
		acc.JoinedDate = time.Now().UTC()
	}
	return s.putJSON(KeyUserAccount, acc)
}

// DeleteAccount removes the stored account.
func (s *Store) DeleteAccount() error {
	return s.remove(KeyUserAccount)
}

// ChatHistory returns the persisted active transcript.
func (s *Store) ChatHistory() ([]chat.Message, error) {
	data, ok, err := s.getRaw(KeyChatHistory)
	if err != nil || !ok {
		return nil, err
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		logger.L.Warn("discarding unreadable chat history", "error", err)
		return nil, nil
	}
	return decodeMessages(KeyChatHistory, raws), nil
}

// SaveChatHistory persists the active transcript.
func (s *Store) SaveChatHistory(msgs []chat.Message) error {
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return s.putJSON(KeyChatHistory, msgs)
}

// ClearChatHistory removes the persisted active transcript.
func (s *Store) ClearChatHistory() error {
	return s.remove(KeyChatHistory)
}

// Sessions returns every stored session in stored order. Malformed records
// are dropped or repaired.
func (s *Store) Sessions() ([]chat.Session, error) {
	data, ok, err := s.getRaw(KeyConversationSessions)
	if err != nil || !ok {
		return nil, err
	}
	return decodeSessions(data), nil
}

// SaveSessions replaces the stored session list.
func (s *Store) SaveSessions(sessions []chat.Session) error {
	if sessions == nil {
		sessions = []chat.Session{}
	}
	return s.putJSON(KeyConversationSessions, sessions)
}

// ClearSessions removes every session and the current-session pointer.
func (s *Store) ClearSessions() error {
	err := s.remove(KeyConversationSessions)
	if perr := s.remove(KeyCurrentSession); err == nil {
		err = perr
	}
	return err
}

// CurrentSession returns the persisted current-session pointer, "" when unset.
func (s *Store) CurrentSession() (string, error) {
	return s.getString(KeyCurrentSession)
}

// SetCurrentSession persists the pointer. An empty id removes it.
func (s *Store) SetCurrentSession(id string) error {
	return s.setString(KeyCurrentSession, id)
}

// CurrentUser returns the email of the signed-in user, "" when signed out.
func (s *Store) CurrentUser() (string, error) {
	return s.getString(KeyCurrentUser)
}

// SetCurrentUser records the signed-in user.
func (s *Store) SetCurrentUser(email string) error {
	return s.setString(KeyCurrentUser, email)
}

// ClearCurrentUser signs the user out without touching the account.
func (s *Store) ClearCurrentUser() error {
	return s.remove(KeyCurrentUser)
}

// Settings returns the stored settings merged over the defaults.
func (s *Store) Settings() (chat.Settings, error) {
	def := chat.DefaultSettings()
	data, ok, err := s.getRaw(KeySessionSettings)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	merged := def
	if err := json.Unmarshal(data, &merged); err != nil {
		logger.L.Warn("discarding unreadable settings", "error", err)
		return def, nil
	}
	merged, repaired := merged.Normalize()
	if repaired {
		logger.L.Warn("repaired out-of-range settings")
	}
	return merged, nil
}

// SaveSettings merges patch over the stored settings and returns the result.
func (s *Store) SaveSettings(patch chat.SettingsPatch) (chat.Settings, error) {
	current, err := s.Settings()
	if err != nil {
		return current, err
	}
	updated, _ := patch.Apply(current).Normalize()
	if err := s.putJSON(KeySessionSettings, updated); err != nil {
		return current, err
	}
	return updated, nil
}

// LastLogin returns the last sign-in instant, zero when never recorded.
func (s *Store) LastLogin() (time.Time, error) {
	v, err := s.getString(KeyLastLogin)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	ts, perr := time.Parse(time.RFC3339Nano, v)
	if perr != nil {
		logger.L.Warn("discarding unreadable last login", "value", v, "error", perr)
		return time.Time{}, nil
	}
	return ts, nil
}

// TouchLastLogin records now as the last sign-in.
func (s *Store) TouchLastLogin(now time.Time) error {
	return s.setString(KeyLastLogin, now.UTC().Format(time.RFC3339Nano))
}

func (s *Store) getString(key string) (string, error) {
	data, ok, err := s.getRaw(key)
	if err != nil || !ok {
		return "", err
	}
	return string(data), nil
}

func (s *Store) setString(key, value string) error {
	if value == "" {
		return s.remove(key)
	}
	return s.putRaw(key, []byte(value))
}
