// Package account manages the single local user account.
package account

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/comigor/conner-go/internal/chat"
	"github.com/comigor/conner-go/internal/logger"
	"github.com/comigor/conner-go/internal/store"
)

var (
	ErrInvalidInput       = errors.New("invalid account details")
	ErrAccountExists      = errors.New("an account with this email already exists")
	ErrNoAccount          = errors.New("no account found, please sign up first")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// Service signs users up, in and out against the account in the store.
type Service struct {
	store *store.Store
	now   func() time.Time
}

// New returns a Service over st.
func New(st *store.Store) *Service {
	return &Service{store: st, now: func() time.Time { return time.Now().UTC() }}
}

func validate(email, password string) error {
	switch {
	case strings.TrimSpace(email) == "":
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	case !emailPattern.MatchString(strings.TrimSpace(email)):
		return fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	case strings.TrimSpace(password) == "":
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	case len(password) < minPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	return nil
}

// SignUp stores a new account and signs it in. Only one account is kept;
// signing up with a different email replaces the stored one.
func (s *Service) SignUp(name, email, password string) (*chat.Account, error) {
	if err := validate(email, password); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)

	existing, err := s.store.Account()
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Email == email {
		return nil, ErrAccountExists
	}
	if existing != nil {
		logger.L.Info("replacing stored account", "previous", existing.Email)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	acc := chat.Account{
		Name:        name,
		Email:       email,
		Password:    password,
		JoinedDate:  s.now(),
		Preferences: map[string]any{},
	}
	if err := s.store.SaveAccount(acc); err != nil {
		return nil, err
	}
	if err := s.startSession(email); err != nil {
		return nil, err
	}
	return &acc, nil
}

// SignIn checks the credentials against the stored account.
func (s *Service) SignIn(email, password string) (*chat.Account, error) {
	if err := validate(email, password); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)

	acc, err := s.store.Account()
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrNoAccount
	}
	if acc.Email != email || (acc.Password != "" && acc.Password != password) {
		return nil, ErrInvalidCredentials
	}
	if err := s.startSession(email); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *Service) startSession(email string) error {
	if err := s.store.SetCurrentUser(email); err != nil {
		return err
	}
	return s.store.TouchLastLogin(s.now())
}

// SignOut clears the signed-in user. The account is kept.
func (s *Service) SignOut() error {
	return s.store.ClearCurrentUser()
}

// Current returns the signed-in account, or nil when nobody is signed in.
func (s *Service) Current() (*chat.Account, error) {
	email, err := s.store.CurrentUser()
	if err != nil || email == "" {
		return nil, err
	}
	acc, err := s.store.Account()
	if err != nil || acc == nil {
		return nil, err
	}
	if acc.Email != email {
		return nil, nil
	}
	return acc, nil
}

// Delete removes the account together with every other stored record.
func (s *Service) Delete() error {
	return s.store.ClearAll()
}
