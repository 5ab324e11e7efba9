package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/comigor/conner-go/internal/chat"
	"github.com/comigor/conner-go/internal/config"
	"github.com/comigor/conner-go/internal/logger"
)

// Backend is the gateway for a hosted assistant endpoint that accepts
// {message, contextWindow, personality} and answers {success, message, timestamp}.
type Backend struct {
	client      *resty.Client
	url         string
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	now         func() time.Time
}

// NewBackend creates a Backend for cfg.BackendURL.
func NewBackend(cfg config.GatewayConfig) *Backend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	c := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "conner/"+Version).
		SetTimeout(timeout)

	return &Backend{
		client:      c,
		url:         cfg.BackendURL,
		maxAttempts: attempts,
		baseBackoff: 500 * time.Millisecond,
		maxBackoff:  5 * time.Second,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type backendRequest struct {
	Message       string           `json:"message"`
	ContextWindow []chat.Message   `json:"contextWindow"`
	Personality   chat.Personality `json:"personality"`
}

type backendResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error"`
}

// Send implements Client. Transport errors and 5xx responses are retried
// with exponential backoff; anything else fails immediately.
func (b *Backend) Send(ctx context.Context, message string, window []chat.Message, personality chat.Personality) (Reply, error) {
	if window == nil {
		window = []chat.Message{}
	}
	body := backendRequest{Message: message, ContextWindow: window, Personality: personality}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = b.baseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = b.maxBackoff
	exp.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(b.maxAttempts-1)), ctx)

	var reply Reply
	attempt := 0
	op := func() error {
		attempt++
		r, err := b.post(ctx, body)
		if err != nil {
			logger.L.Warn("backend request failed", "attempt", attempt, "error", err)
			return err
		}
		reply = r
		return nil
	}
	if err := backoff.Retry(op, policy); err != nil {
		return Reply{}, err
	}
	return reply, nil
}

func (b *Backend) post(ctx context.Context, body backendRequest) (Reply, error) {
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(&body).
		Post(b.url)
	if err != nil {
		if ctx.Err() != nil {
			return Reply{}, backoff.Permanent(ctx.Err())
		}
		return Reply{}, fmt.Errorf("backend request: %w", err)
	}

	var out backendResponse
	decodeErr := json.Unmarshal(resp.Body(), &out)

	if resp.StatusCode() >= http.StatusInternalServerError {
		return Reply{}, fmt.Errorf("backend status %d: %s", resp.StatusCode(), out.Error)
	}
	if resp.StatusCode() != http.StatusOK {
		return Reply{}, backoff.Permanent(fmt.Errorf("backend status %d: %s", resp.StatusCode(), out.Error))
	}
	if decodeErr != nil {
		return Reply{}, backoff.Permanent(fmt.Errorf("decode backend response: %w", decodeErr))
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "request failed"
		}
		return Reply{}, backoff.Permanent(errors.New(msg))
	}

	ts := b.now()
	if out.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, out.Timestamp); err == nil {
			ts = parsed.UTC()
		}
	}
	return Reply{Message: out.Message, Timestamp: ts}, nil
}
