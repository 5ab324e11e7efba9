package chat

import "time"

// Account is the single locally stored user account. The password is kept
// in cleartext; this client is a demo and the store is not encrypted.
type Account struct {
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Password    string         `json:"password,omitempty"`
	JoinedDate  time.Time      `json:"joinedDate"`
	Preferences map[string]any `json:"preferences,omitempty"`
}
