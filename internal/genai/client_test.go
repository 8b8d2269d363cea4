package genai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-report/internal/logger"
)

var testLog = logger.NewWithWriter(io.Discard)

func TestCompleteSendsChatCompletionRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "you are a system prompt", req.Messages[0].Content)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "hello", req.Messages[1].Content)

		json.NewEncoder(w).Encode(chatCompletionResponse{
			Choices: []choice{{Message: message{Role: "assistant", Content: "  hi there  "}}},
		})
	}))
	defer server.Close()

	client := NewClientWithBaseURL(ProviderOpenAI, "test-key", server.URL, testLog)
	got, err := client.Complete(context.Background(), "gpt-4o-mini", "you are a system prompt", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", got, "response content is trimmed")
}

func TestCompleteNon2xxStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "invalid api key"}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(ProviderOpenAI, "bad-key", server.URL, testLog)
	_, err := client.Complete(context.Background(), "gpt-4o-mini", "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestCompleteEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatCompletionResponse{})
	}))
	defer server.Close()

	client := NewClientWithBaseURL(ProviderDeepSeek, "key", server.URL, testLog)
	_, err := client.Complete(context.Background(), "deepseek-chat", "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestCompleteContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClientWithBaseURL(ProviderOpenAI, "key", server.URL, testLog)
	_, err := client.Complete(ctx, "gpt-4o-mini", "s", "u")
	assert.Error(t, err)
}

func TestBaseURLPerProvider(t *testing.T) {
	assert.Equal(t, "https://api.deepseek.com", baseURL(ProviderDeepSeek))
	assert.Equal(t, "https://api.openai.com/v1", baseURL(ProviderOpenAI))
	assert.Equal(t, "https://api.openai.com/v1", baseURL("unknown"))
}
