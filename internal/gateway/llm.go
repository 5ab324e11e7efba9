package gateway

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/conner-go/internal/config"
)

// LLM is the subset of openai.Client used by the agent; it is easy to mock in tests.
type LLM interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewOpenAIClient creates an OpenAI-compatible client for cfg.
func NewOpenAIClient(cfg config.LLMConfig) *openai.Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(oc)
}
