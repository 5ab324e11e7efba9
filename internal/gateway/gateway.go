// Package gateway is the boundary to the remote assistant. Callers supply
// the whole conversational context on every call; clients keep no
// per-conversation state.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/comigor/conner-go/internal/chat"
	"github.com/comigor/conner-go/internal/config"
)

// Reply is a successful assistant response.
type Reply struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Client sends one user message with its trailing context window and
// returns the assistant reply.
type Client interface {
	Send(ctx context.Context, message string, window []chat.Message, personality chat.Personality) (Reply, error)
}

// Summarizer is implemented by clients that can summarise a conversation.
type Summarizer interface {
	Summarize(ctx context.Context, msgs []chat.Message) (string, error)
}

// Version is reported to MCP servers and the backend.
const Version = "0.1.0"

// ErrNotConfigured is returned when the selected provider lacks the settings it needs.
var ErrNotConfigured = errors.New("assistant gateway not configured")

// Initialize builds the client selected by cfg.Gateway.Provider.
func Initialize(cfg config.Config) (Client, error) {
	switch cfg.Gateway.Provider {
	case "", config.ProviderOpenAI:
		if cfg.LLM.APIKey == "" && cfg.LLM.BaseURL == "" {
			return nil, fmt.Errorf("%w: llm.api_key or llm.base_url is required", ErrNotConfigured)
		}
		return New(NewOpenAIClient(cfg.LLM), cfg), nil
	case config.ProviderBackend:
		if cfg.Gateway.BackendURL == "" {
			return nil, fmt.Errorf("%w: gateway.backend_url is required", ErrNotConfigured)
		}
		return NewBackend(cfg.Gateway), nil
	default:
		return nil, fmt.Errorf("unknown gateway provider %q", cfg.Gateway.Provider)
	}
}

const basePersona = "You are Conner, an empathetic and reflective AI companion for mental well-being. " +
	"Your purpose is to help users explore their emotions, build self-awareness, and develop healthier thought patterns. " +
	"You offer compassionate, non-judgmental support to encourage personal growth and emotional understanding. " +
	"If a user expresses that they are in crisis or experiencing severe distress, gently remind them that they are not alone " +
	"and point them to a local mental health helpline or emergency service."

var personalityGuidance = map[chat.Personality]string{
	chat.PersonalitySupportive: "Respond in a warm, encouraging, and supportive manner. Focus on validation and gentle guidance.",
	chat.PersonalityReflective: "Respond by asking thoughtful questions that help the user reflect on their feelings and thoughts. Be curious and non-judgmental.",
	chat.PersonalityLogical:    "Respond with a structured, analytical approach. Help the user think through their situation systematically and rationally.",
}

// SystemPrompt returns the persona prompt for p. Unknown personalities get
// the supportive guidance.
func SystemPrompt(p chat.Personality) string {
	return basePersona + " " + guidanceFor(p)
}

func guidanceFor(p chat.Personality) string {
	if guidance, ok := personalityGuidance[p]; ok {
		return guidance
	}
	return personalityGuidance[chat.PersonalitySupportive]
}
