// Package api serves the local JSON HTTP API over the conversation
// controller, the session registry, settings, the account and export.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/comigor/conner-go/internal/account"
	"github.com/comigor/conner-go/internal/conversation"
	"github.com/comigor/conner-go/internal/session"
	"github.com/comigor/conner-go/internal/store"
)

// User-facing failure messages. Raw errors are logged, never returned.
const (
	msgGeneric     = "Something went wrong. Please try again."
	msgStorage     = "We couldn't save your changes. Please try again or export your chat."
	msgNotFound    = "Conversation not found."
	msgAssistant   = "The assistant is unavailable right now. Please try again later."
	msgNotSignedIn = "You are not signed in."
)

// Server holds the components the handlers operate on.
type Server struct {
	ctrl     *conversation.Controller
	registry *session.Registry
	store    *store.Store
	accounts *account.Service
	now      func() time.Time
	loc      *time.Location
}

// NewServer returns a Server. Text exports render timestamps in time.Local.
func NewServer(ctrl *conversation.Controller, reg *session.Registry, st *store.Store, accounts *account.Service) *Server {
	return &Server{
		ctrl:     ctrl,
		registry: reg,
		store:    st,
		accounts: accounts,
		now:      time.Now,
		loc:      time.Local,
	}
}

// NewRouter registers every API route.
func (s *Server) NewRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(recoverMiddleware)

	// Active chat
	router.HandleFunc("/api/chat", s.GetChat).Methods(http.MethodGet)
	router.HandleFunc("/api/chat/messages", s.SendMessage).Methods(http.MethodPost)
	router.HandleFunc("/api/chat/new", s.NewChat).Methods(http.MethodPost)
	router.HandleFunc("/api/chat/clear", s.ClearChat).Methods(http.MethodPost)
	router.HandleFunc("/api/chat/resume", s.ResumeChat).Methods(http.MethodPost)
	router.HandleFunc("/api/chat/summary", s.Summarize).Methods(http.MethodPost)

	// Sessions
	router.HandleFunc("/api/sessions", s.ListSessions).Methods(http.MethodGet)
	router.HandleFunc("/api/sessions", s.ClearSessions).Methods(http.MethodDelete)
	router.HandleFunc("/api/sessions/{id}", s.GetSession).Methods(http.MethodGet)
	router.HandleFunc("/api/sessions/{id}", s.RenameSession).Methods(http.MethodPatch)
	router.HandleFunc("/api/sessions/{id}", s.DeleteSession).Methods(http.MethodDelete)
	router.HandleFunc("/api/sessions/{id}/switch", s.SwitchSession).Methods(http.MethodPost)

	// Settings
	router.HandleFunc("/api/settings", s.GetSettings).Methods(http.MethodGet)
	router.HandleFunc("/api/settings", s.UpdateSettings).Methods(http.MethodPatch)

	// Account
	router.HandleFunc("/api/account/signup", s.SignUp).Methods(http.MethodPost)
	router.HandleFunc("/api/account/signin", s.SignIn).Methods(http.MethodPost)
	router.HandleFunc("/api/account/signout", s.SignOut).Methods(http.MethodPost)
	router.HandleFunc("/api/account", s.GetAccount).Methods(http.MethodGet)
	router.HandleFunc("/api/account", s.DeleteAccount).Methods(http.MethodDelete)

	router.HandleFunc("/api/export", s.Export).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router
}
