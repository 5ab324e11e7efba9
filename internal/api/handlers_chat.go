package api

import (
	"errors"
	"net/http"

	"github.com/comigor/conner-go/internal/chat"
	"github.com/comigor/conner-go/internal/conversation"
)

// ChatState is the active chat as seen by clients.
type ChatState struct {
	SessionID string         `json:"sessionId,omitempty"`
	Bound     bool           `json:"bound"`
	Loading   bool           `json:"loading"`
	Messages  []chat.Message `json:"messages"`
}

func (s *Server) chatState() ChatState {
	msgs := s.ctrl.Transcript()
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return ChatState{
		SessionID: s.ctrl.SessionID(),
		Bound:     s.ctrl.Bound(),
		Loading:   s.ctrl.Loading(),
		Messages:  msgs,
	}
}

func (s *Server) GetChat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.chatState())
}

// SendResponse carries the assistant reply. Saved is false when the chat
// could not be persisted; the reply is still part of the active chat.
type SendResponse struct {
	Reply chat.Message `json:"reply"`
	Saved bool         `json:"saved"`
	Chat  ChatState    `json:"chat"`
}

func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	reply, err := s.ctrl.Send(r.Context(), in.Message)
	if errors.Is(err, conversation.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	writeJSON(w, http.StatusOK, SendResponse{Reply: reply, Saved: err == nil, Chat: s.chatState()})
}

func (s *Server) NewChat(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.StartNewChat(); err != nil {
		writeError(w, http.StatusInternalServerError, msgStorage)
		return
	}
	writeJSON(w, http.StatusOK, s.chatState())
}

func (s *Server) ClearChat(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.ClearActiveChat(); err != nil {
		writeError(w, http.StatusInternalServerError, msgStorage)
		return
	}
	writeJSON(w, http.StatusOK, s.chatState())
}

func (s *Server) ResumeChat(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Resume(); err != nil {
		writeError(w, http.StatusInternalServerError, msgStorage)
		return
	}
	writeJSON(w, http.StatusOK, s.chatState())
}

func (s *Server) Summarize(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ctrl.Summarize(r.Context())
	switch {
	case errors.Is(err, conversation.ErrNothingToSummarize):
		writeError(w, http.StatusBadRequest, "There is nothing to summarize yet.")
	case errors.Is(err, conversation.ErrSummaryUnsupported):
		writeError(w, http.StatusNotImplemented, "Summaries are not available with this assistant.")
	case err != nil:
		writeError(w, http.StatusBadGateway, msgAssistant)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
	}
}
