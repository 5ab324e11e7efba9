package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comigor/conner-go/internal/chat"
	"github.com/comigor/conner-go/internal/config"
)

func newTestBackend(url string, attempts int) *Backend {
	b := NewBackend(config.GatewayConfig{BackendURL: url, Timeout: 2 * time.Second, MaxAttempts: attempts})
	b.baseBackoff = time.Millisecond
	b.maxBackoff = 2 * time.Millisecond
	b.now = func() time.Time { return fixedNow }
	return b
}

func TestBackendSend_Success(t *testing.T) {
	var got backendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":   true,
			"message":   "That sounds hard.",
			"timestamp": "2024-05-01T10:00:05.5Z",
		})
	}))
	defer srv.Close()

	window := []chat.Message{{Role: chat.RoleUser, Content: "prev", Timestamp: fixedNow}}
	reply, err := newTestBackend(srv.URL, 1).Send(context.Background(), "I had a rough day", window, chat.PersonalityLogical)
	require.NoError(t, err)
	require.Equal(t, "That sounds hard.", reply.Message)
	require.True(t, reply.Timestamp.Equal(fixedNow.Add(5500*time.Millisecond)))

	require.Equal(t, "I had a rough day", got.Message)
	require.Equal(t, chat.PersonalityLogical, got.Personality)
	require.Len(t, got.ContextWindow, 1)
	require.Equal(t, "prev", got.ContextWindow[0].Content)
}

func TestBackendSend_EmptyWindowIsArray(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"success":true,"message":"hi"}`))
	}))
	defer srv.Close()

	reply, err := newTestBackend(srv.URL, 1).Send(context.Background(), "hello", nil, chat.PersonalitySupportive)
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(raw["contextWindow"]))
	require.True(t, reply.Timestamp.Equal(fixedNow), "missing timestamp falls back to the local clock")
}

func TestBackendSend_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"finally"}`))
	}))
	defer srv.Close()

	reply, err := newTestBackend(srv.URL, 3).Send(context.Background(), "hello", nil, chat.PersonalitySupportive)
	require.NoError(t, err)
	require.Equal(t, "finally", reply.Message)
	require.EqualValues(t, 3, hits.Load())
}

func TestBackendSend_GivesUpAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestBackend(srv.URL, 2).Send(context.Background(), "hello", nil, chat.PersonalitySupportive)
	require.ErrorContains(t, err, "503")
	require.EqualValues(t, 2, hits.Load())
}

func TestBackendSend_PermanentFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"client error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"error":"bad input"}`))
		},
		"success false": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"error":"model unavailable"}`))
		},
		"malformed body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				h(w, r)
			}))
			defer srv.Close()

			_, err := newTestBackend(srv.URL, 3).Send(context.Background(), "hello", nil, chat.PersonalitySupportive)
			require.Error(t, err)
			require.EqualValues(t, 1, hits.Load(), "permanent failures are not retried")
		})
	}
}

func TestBackendSend_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestBackend(srv.URL, 3).Send(ctx, "hello", nil, chat.PersonalitySupportive)
	require.Error(t, err)
}
