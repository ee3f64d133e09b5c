package clients_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/agora/internal/clients"
	"github.com/spacesedan/agora/internal/summary"
)

const chatCompletionJSON = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1714555800,
  "model": "gpt-4",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Readers are cautiously hopeful."}}]
}`

func newOpenAIServer(t *testing.T, handler http.HandlerFunc) *clients.OpenAIClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return clients.NewOpenAIClient(clients.OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/",
	})
}

func TestOpenAIClient_Complete(t *testing.T) {
	var body struct {
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	client := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatCompletionJSON))
	})

	text, err := client.Complete(context.Background(), summary.CompletionRequest{
		System:      summary.SystemPrompt,
		Prompt:      "Headline: H",
		MaxTokens:   250,
		Temperature: 0.7,
	})
	require.NoError(t, err)
	require.Equal(t, "Readers are cautiously hopeful.", text)

	require.Equal(t, "gpt-4", body.Model)
	require.Equal(t, 250, body.MaxTokens)
	require.InDelta(t, 0.7, body.Temperature, 1e-9)
	require.Len(t, body.Messages, 2)
	require.Equal(t, "system", body.Messages[0].Role)
	require.Equal(t, summary.SystemPrompt, body.Messages[0].Content)
	require.Equal(t, "user", body.Messages[1].Role)
	require.Equal(t, "Headline: H", body.Messages[1].Content)
}

func TestOpenAIClient_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   summary.ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, summary.RateLimited},
		{"server error", http.StatusInternalServerError, summary.Unavailable},
		{"bad request", http.StatusBadRequest, summary.Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newOpenAIServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":{"message":"nope","type":"test"}}`))
			})

			_, err := client.Complete(context.Background(), summary.CompletionRequest{Prompt: "p"})
			require.Error(t, err)
			require.Equal(t, tt.want, summary.KindOf(err))
		})
	}
}

func TestOpenAIClient_HealthCheck(t *testing.T) {
	healthy := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4","object":"model","created":1,"owned_by":"openai"}]}`))
	})
	require.True(t, healthy.HealthCheck(context.Background()))

	broken := newOpenAIServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	require.False(t, broken.HealthCheck(context.Background()))
}
