package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/comigor/conner-go/internal/chat"
	"github.com/comigor/conner-go/internal/conversation"
)

// SessionSummary is a session without its messages, for listings.
type SessionSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
	MessageCount int    `json:"messageCount"`
	Current      bool   `json:"current"`
}

func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.registry.Recent()
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgStorage)
		return
	}
	current := s.ctrl.SessionID()
	out := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, SessionSummary{
			ID:           sess.ID,
			Title:        sess.Title,
			CreatedAt:    sess.CreatedAt.Format(timeFormat),
			UpdatedAt:    sess.UpdatedAt.Format(timeFormat),
			MessageCount: sess.MessageCount,
			Current:      sess.ID == current,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func (s *Server) ClearSessions(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.ClearAllSessions(); err != nil {
		writeError(w, http.StatusInternalServerError, msgStorage)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookup(w http.ResponseWriter, id string) (*chat.Session, bool) {
	sess, err := s.registry.Get(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgStorage)
		return nil, false
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, msgNotFound)
		return nil, false
	}
	return sess, true
}

func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// RenameSession applies a new title. A blank title leaves the session unchanged.
func (s *Server) RenameSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var in struct {
		Title string `json:"title"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	if _, ok := s.lookup(w, id); !ok {
		return
	}
	if err := s.registry.Rename(id, in.Title); err != nil {
		writeError(w, http.StatusInternalServerError, msgStorage)
		return
	}
	sess, ok := s.lookup(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// DeleteSession is idempotent: unknown ids also answer 204.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.DeleteSession(mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusInternalServerError, msgStorage)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) SwitchSession(w http.ResponseWriter, r *http.Request) {
	err := s.ctrl.SwitchToSession(mux.Vars(r)["id"])
	switch {
	case errors.Is(err, conversation.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	case err != nil:
		writeError(w, http.StatusInternalServerError, msgStorage)
	default:
		writeJSON(w, http.StatusOK, s.chatState())
	}
}
