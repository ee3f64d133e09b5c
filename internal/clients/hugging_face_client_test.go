package clients_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/agora/internal/clients"
	"github.com/spacesedan/agora/internal/models"
	"github.com/spacesedan/agora/internal/summary"
)

func newHFClient(t *testing.T, handler http.HandlerFunc) *clients.HuggingFaceClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return clients.NewHuggingFaceClient(clients.HuggingFaceConfig{
		Endpoint:       srv.URL + "/summarize",
		Timeout:        2 * time.Second,
		InitialBackoff: time.Millisecond,
		MaxRetries:     3,
	})
}

func TestHuggingFaceClient_Complete(t *testing.T) {
	var got models.SummaryRequest
	client := newHFClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"summary":"Mostly worried."}`))
	})

	text, err := client.Complete(context.Background(), summary.CompletionRequest{
		System:    "sys",
		Prompt:    "Headline: H",
		MaxTokens: 250,
	})
	require.NoError(t, err)
	require.Equal(t, "Mostly worried.", text)
	require.Equal(t, "sys\n\nHeadline: H", got.Inputs)
	require.Equal(t, 250, got.Parameters.MaxNewTokens)
}

func TestHuggingFaceClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newHFClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"summary":"ok"}`))
	})

	text, err := client.Complete(context.Background(), summary.CompletionRequest{Prompt: "p"})
	require.NoError(t, err)
	require.Equal(t, "ok", text)
	require.Equal(t, int32(3), calls.Load())
}

func TestHuggingFaceClient_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   summary.ErrorKind
	}{
		{"persistent outage", http.StatusServiceUnavailable, "", summary.Unavailable},
		{"rate limited", http.StatusTooManyRequests, "", summary.RateLimited},
		{"bad request", http.StatusBadRequest, "", summary.Unknown},
		{"garbage body", http.StatusOK, "not json", summary.Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newHFClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.Complete(context.Background(), summary.CompletionRequest{Prompt: "p"})
			require.Error(t, err)
			require.Equal(t, tt.want, summary.KindOf(err))
		})
	}
}
