// internal/llmclient/gemini_test.go
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/promptsmith/internal/config"
)

func geminiResponse(text string) string {
	return fmt.Sprintf(`{
		"candidates": [{"content": {"parts": [{"text": %q}], "role": "model"}, "finishReason": "STOP"}],
		"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 5, "totalTokenCount": 15}
	}`, text)
}

func newTestClient(t *testing.T, endpoint string) *GeminiClient {
	t.Helper()
	client, err := NewGeminiClient(config.LLMConfig{
		Model:       "gemini-2.5-flash",
		APIKey:      "test-key",
		Endpoint:    endpoint,
		APITimeout:  5 * time.Second,
		Temperature: 0.4,
		MaxTokens:   256,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client
}

func TestNewGeminiClient(t *testing.T) {
	t.Parallel()

	t.Run("requires an API key", func(t *testing.T) {
		t.Parallel()
		_, err := NewGeminiClient(config.LLMConfig{Model: "gemini-2.5-flash"}, zaptest.NewLogger(t))
		assert.Error(t, err)
	})

	t.Run("derives the endpoint from the model name", func(t *testing.T) {
		t.Parallel()
		client, err := NewGeminiClient(config.LLMConfig{Model: "gemini-2.5-flash", APIKey: "k"}, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Contains(t, client.endpoint, "gemini-2.5-flash:generateContent")
	})
}

func TestGeminiClient_GenerateContent(t *testing.T) {
	t.Parallel()

	t.Run("returns the first candidate text", func(t *testing.T) {
		t.Parallel()
		var gotPayload geminiRequestPayload
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
			fmt.Fprint(w, geminiResponse("improved prompt text"))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		got, err := client.GenerateContent(context.Background(), GenerationRequest{
			SystemPrompt: "you rewrite prompts",
			UserPrompt:   "rewrite this",
			ForceJSON:    true,
		})
		require.NoError(t, err)
		assert.Equal(t, "improved prompt text", got)

		require.NotNil(t, gotPayload.SystemInstruction)
		assert.Equal(t, "you rewrite prompts", gotPayload.SystemInstruction.Parts[0].Text)
		require.Len(t, gotPayload.Contents, 1)
		assert.Equal(t, "rewrite this", gotPayload.Contents[0].Parts[0].Text)
		assert.Equal(t, "application/json", gotPayload.GenerationConfig.ResponseMimeType)
		assert.Equal(t, 0.4, gotPayload.GenerationConfig.Temperature)
	})

	t.Run("retries transient server errors", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, geminiResponse("second try"))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		got, err := client.GenerateContent(context.Background(), GenerationRequest{UserPrompt: "hi"})
		require.NoError(t, err)
		assert.Equal(t, "second try", got)
		assert.EqualValues(t, 2, calls.Load())
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		_, err := client.GenerateContent(context.Background(), GenerationRequest{UserPrompt: "hi"})
		require.Error(t, err)
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("treats safety blocks as permanent", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			fmt.Fprint(w, `{"candidates": [{"content": {"parts": []}, "finishReason": "SAFETY"}]}`)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		_, err := client.GenerateContent(context.Background(), GenerationRequest{UserPrompt: "hi"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SAFETY")
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable) // would retry forever
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		client := newTestClient(t, server.URL)
		_, err := client.GenerateContent(ctx, GenerationRequest{UserPrompt: "hi"})
		assert.Error(t, err)
	})
}
