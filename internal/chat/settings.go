package chat

import "fmt"

// Personality selects the assistant's response style.
type Personality string

const (
	PersonalitySupportive Personality = "supportive"
	PersonalityReflective Personality = "reflective"
	PersonalityLogical    Personality = "logical"
)

// Personalities lists the recognised personalities in display order.
var Personalities = []Personality{PersonalitySupportive, PersonalityReflective, PersonalityLogical}

// Valid reports whether p is a recognised personality.
func (p Personality) Valid() bool {
	switch p {
	case PersonalitySupportive, PersonalityReflective, PersonalityLogical:
		return true
	}
	return false
}

// ParsePersonality validates a personality name.
func ParsePersonality(s string) (Personality, error) {
	p := Personality(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown personality %q", s)
	}
	return p, nil
}

// Settings are the user preferences persisted alongside conversations.
type Settings struct {
	DarkMode          bool        `json:"darkMode"`
	MessageLimit      int         `json:"messageLimit"`
	ContextWindowSize int         `json:"contextWindowSize"`
	AIPersonality     Personality `json:"aiPersonality"`
	TypingSpeed       int         `json:"typingSpeed"`
}

// DefaultSettings returns the settings used when nothing is stored.
func DefaultSettings() Settings {
	return Settings{
		DarkMode:          false,
		MessageLimit:      100,
		ContextWindowSize: 10,
		AIPersonality:     PersonalitySupportive,
		TypingSpeed:       50,
	}
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	DarkMode          *bool        `json:"darkMode,omitempty"`
	MessageLimit      *int         `json:"messageLimit,omitempty"`
	ContextWindowSize *int         `json:"contextWindowSize,omitempty"`
	AIPersonality     *Personality `json:"aiPersonality,omitempty"`
	TypingSpeed       *int         `json:"typingSpeed,omitempty"`
}

// Apply merges the patch over s.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.DarkMode != nil {
		s.DarkMode = *p.DarkMode
	}
	if p.MessageLimit != nil {
		s.MessageLimit = *p.MessageLimit
	}
	if p.ContextWindowSize != nil {
		s.ContextWindowSize = *p.ContextWindowSize
	}
	if p.AIPersonality != nil {
		s.AIPersonality = *p.AIPersonality
	}
	if p.TypingSpeed != nil {
		s.TypingSpeed = *p.TypingSpeed
	}
	return s
}

// Normalize replaces out-of-range values with defaults and reports whether
// anything changed.
func (s Settings) Normalize() (Settings, bool) {
	def := DefaultSettings()
	changed := false
	if s.MessageLimit <= 0 {
		s.MessageLimit = def.MessageLimit
		changed = true
	}
	if s.ContextWindowSize <= 0 {
		s.ContextWindowSize = def.ContextWindowSize
		changed = true
	}
	if !s.AIPersonality.Valid() {
		s.AIPersonality = def.AIPersonality
		changed = true
	}
	if s.TypingSpeed < 0 {
		s.TypingSpeed = def.TypingSpeed
		changed = true
	}
	return s, changed
}
