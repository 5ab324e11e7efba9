package api

import (
	"errors"
	"net/http"

	"github.com/comigor/conner-go/internal/account"
	"github.com/comigor/conner-go/internal/chat"
	"github.com/comigor/conner-go/internal/export"
)

func (s *Server) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.Settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgStorage)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch chat.SettingsPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if patch.AIPersonality != nil && !patch.AIPersonality.Valid() {
		writeError(w, http.StatusBadRequest, "unknown personality")
		return
	}
	settings, err := s.store.SaveSettings(patch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgStorage)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func public(acc *chat.Account) chat.Account {
	out := *acc
	out.Password = ""
	return out
}

func writeAccountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, account.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, account.ErrAccountExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, account.ErrNoAccount):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, account.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, msgStorage)
	}
}

func (s *Server) SignUp(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decodeJSON(w, r, &in) {
		return
	}
	acc, err := s.accounts.SignUp(in.Name, in.Email, in.Password)
	if err != nil {
		writeAccountError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, public(acc))
}

func (s *Server) SignIn(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decodeJSON(w, r, &in) {
		return
	}
	acc, err := s.accounts.SignIn(in.Email, in.Password)
	if err != nil {
		writeAccountError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, public(acc))
}

func (s *Server) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.SignOut(); err != nil {
		writeError(w, http.StatusInternalServerError, msgStorage)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) GetAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := s.accounts.Current()
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgStorage)
		return
	}
	if acc == nil {
		writeError(w, http.StatusNotFound, msgNotSignedIn)
		return
	}
	writeJSON(w, http.StatusOK, public(acc))
}

// DeleteAccount removes every stored record and resets the active chat.
func (s *Server) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.Delete(); err != nil {
		writeError(w, http.StatusInternalServerError, msgStorage)
		return
	}
	if err := s.ctrl.ClearActiveChat(); err != nil {
		writeError(w, http.StatusInternalServerError, msgStorage)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) Export(w http.ResponseWriter, r *http.Request) {
	format := export.FormatJSON
	if v := r.URL.Query().Get("format"); v != "" {
		f, err := export.ParseFormat(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = f
	}
	acc, err := s.store.Account()
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgStorage)
		return
	}
	now := s.now()
	data, err := export.Render(format, acc, s.ctrl.Transcript(), now, s.loc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgGeneric)
		return
	}
	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename("chat", format, now)+`"`)
	_, _ = w.Write(data)
}
