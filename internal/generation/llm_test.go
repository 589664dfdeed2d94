// internal/generation/llm_test.go
package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/promptsmith/api/schemas"
	"github.com/xkilldash9x/promptsmith/internal/config"
	"github.com/xkilldash9x/promptsmith/internal/llmclient"
)

type fakeClient struct {
	lastReq  llmclient.GenerationRequest
	response string
	err      error
}

func (f *fakeClient) GenerateContent(ctx context.Context, req llmclient.GenerationRequest) (string, error) {
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestNewLLM(t *testing.T) {
	t.Parallel()
	_, err := NewLLM(nil, zaptest.NewLogger(t))
	assert.Error(t, err, "nil client must be rejected")
}

func TestLLMGenerator_Generate(t *testing.T) {
	t.Parallel()

	t.Run("parses a structured candidate", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{response: `{"improved_prompt": "rewritten", "score_improvement": 9.5, "reasoning": "tightened wording"}`}
		g, err := NewLLM(client, zaptest.NewLogger(t))
		require.NoError(t, err)

		pc := &schemas.PromptContext{IsCoding: true, Complexity: schemas.ComplexityMedium, Frameworks: []string{"sql"}}
		cand, err := g.Generate(context.Background(), "original", pc, schemas.MethodClarity)
		require.NoError(t, err)

		assert.Equal(t, "rewritten", cand.Text)
		assert.Equal(t, schemas.MethodClarity, cand.Method)
		assert.Equal(t, 9.5, cand.ScoreImprovement)
		assert.Equal(t, "tightened wording", cand.Reasoning)

		assert.True(t, client.lastReq.ForceJSON)
		assert.Contains(t, client.lastReq.SystemPrompt, "clarity")
		assert.Contains(t, client.lastReq.UserPrompt, "original")
		assert.Contains(t, client.lastReq.UserPrompt, "coding")
		assert.Contains(t, client.lastReq.UserPrompt, "sql")
	})

	t.Run("tolerates markdown-fenced JSON", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{response: "```json\n{\"improved_prompt\": \"rewritten\", \"score_improvement\": 4}\n```"}
		g, err := NewLLM(client, zaptest.NewLogger(t))
		require.NoError(t, err)

		cand, err := g.Generate(context.Background(), "original", nil, schemas.MethodStructure)
		require.NoError(t, err)
		assert.Equal(t, "rewritten", cand.Text)
		assert.Equal(t, 4.0, cand.ScoreImprovement)
	})

	t.Run("rejects an empty candidate", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{response: `{"improved_prompt": "   ", "score_improvement": 4}`}
		g, err := NewLLM(client, zaptest.NewLogger(t))
		require.NoError(t, err)

		_, err = g.Generate(context.Background(), "original", nil, schemas.MethodFewShot)
		assert.Error(t, err)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{response: "sure! here is an improved prompt:"}
		g, err := NewLLM(client, zaptest.NewLogger(t))
		require.NoError(t, err)

		_, err = g.Generate(context.Background(), "original", nil, schemas.MethodClarity)
		assert.Error(t, err)
	})

	t.Run("wraps client errors", func(t *testing.T) {
		t.Parallel()
		wantErr := errors.New("backend unavailable")
		client := &fakeClient{err: wantErr}
		g, err := NewLLM(client, zaptest.NewLogger(t))
		require.NoError(t, err)

		_, err = g.Generate(context.Background(), "original", nil, schemas.MethodClarity)
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("rejects unknown methods", func(t *testing.T) {
		t.Parallel()
		g, err := NewLLM(&fakeClient{}, zaptest.NewLogger(t))
		require.NoError(t, err)

		_, err = g.Generate(context.Background(), "original", nil, schemas.Method("mystery"))
		assert.Error(t, err)
	})
}

func TestNewFactory(t *testing.T) {
	t.Parallel()

	t.Run("heuristic mode", func(t *testing.T) {
		t.Parallel()
		g, err := New(config.GenerationConfig{Mode: "heuristic"}, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.IsType(t, &HeuristicGenerator{}, g)
	})

	t.Run("llm mode requires an API key", func(t *testing.T) {
		t.Parallel()
		_, err := New(config.GenerationConfig{Mode: "llm"}, zaptest.NewLogger(t))
		assert.Error(t, err)
	})

	t.Run("llm mode with a key", func(t *testing.T) {
		t.Parallel()
		g, err := New(config.GenerationConfig{
			Mode: "llm",
			LLM:  config.LLMConfig{Model: "gemini-2.5-flash", APIKey: "k"},
		}, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.IsType(t, &LLMGenerator{}, g)
	})

	t.Run("unknown mode", func(t *testing.T) {
		t.Parallel()
		_, err := New(config.GenerationConfig{Mode: "psychic"}, zaptest.NewLogger(t))
		assert.Error(t, err)
	})
}
