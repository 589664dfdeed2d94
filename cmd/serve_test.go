// cmd/serve_test.go
package cmd

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/promptsmith/internal/analysis"
	"github.com/xkilldash9x/promptsmith/internal/config"
	"github.com/xkilldash9x/promptsmith/internal/generation"
	"github.com/xkilldash9x/promptsmith/internal/orchestrator"
	"github.com/xkilldash9x/promptsmith/internal/patterns"
	"github.com/xkilldash9x/promptsmith/internal/recorder"
	"github.com/xkilldash9x/promptsmith/internal/scoring"
)

// newTestServer assembles the full pipeline with the heuristic generator and
// the no-op recorder, mirroring a default configuration.
func newTestServer(t *testing.T) *server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := config.NewDefaultConfig()

	scorer, err := scoring.NewScorer(cfg.Scoring(), logger)
	require.NoError(t, err)
	generator, err := generation.New(cfg.Generation(), logger)
	require.NoError(t, err)

	orch, err := orchestrator.New(cfg.Orchestrator(), logger,
		analysis.NewClassifier(logger), scorer, generator,
		recorder.NewNop(), patterns.NewKeywordExtractor(logger))
	require.NoError(t, err)

	return &server{
		orch:       orch,
		classifier: analysis.NewClassifier(logger),
		scorer:     scorer,
		logger:     logger,
	}
}

func runRequests(t *testing.T, srv *server, lines ...string) []CommandResponse {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, srv.serveLoop(ctx, in, &out))
	srv.orch.WaitBackground()

	json := jsoniter.ConfigCompatibleWithStandardLibrary
	var responses []CommandResponse
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp CommandResponse
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		responses = append(responses, resp)
	}
	require.NoError(t, scanner.Err())
	return responses
}

func TestServeLoop(t *testing.T) {
	t.Parallel()

	t.Run("ping", func(t *testing.T) {
		t.Parallel()
		responses := runRequests(t, newTestServer(t), `{"command": "ping"}`)
		require.Len(t, responses, 1)
		assert.Equal(t, "success", responses[0].Status)
		assert.Equal(t, "pong", responses[0].Data)
	})

	t.Run("improve_prompt returns a full result", func(t *testing.T) {
		t.Parallel()
		responses := runRequests(t, newTestServer(t),
			`{"command": "improve_prompt", "params": {"text": "do something about the bug"}}`)
		require.Len(t, responses, 1)
		require.Equal(t, "success", responses[0].Status)

		data, ok := responses[0].Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, true, data["success"])
		assert.NotEmpty(t, data["run_id"])
		assert.NotEmpty(t, data["final_text"])
	})

	t.Run("evaluate_prompt scores without improving", func(t *testing.T) {
		t.Parallel()
		responses := runRequests(t, newTestServer(t),
			`{"command": "evaluate_prompt", "params": {"text": "Write three bullet points about Go"}}`)
		require.Len(t, responses, 1)
		require.Equal(t, "success", responses[0].Status)

		data, ok := responses[0].Data.(map[string]interface{})
		require.True(t, ok)
		assert.Contains(t, data, "result")
		assert.Contains(t, data, "context")
	})

	t.Run("history reflects completed runs", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)
		responses := runRequests(t, srv,
			`{"command": "improve_prompt", "params": {"text": "fix the bug in the parser"}}`,
			`{"command": "history", "params": {"min_score": 0}}`)
		require.Len(t, responses, 2)
		require.Equal(t, "success", responses[1].Status)

		entries, ok := responses[1].Data.([]interface{})
		require.True(t, ok)
		assert.Len(t, entries, 1)
	})

	t.Run("bad input yields error responses without ending the loop", func(t *testing.T) {
		t.Parallel()
		responses := runRequests(t, newTestServer(t),
			`this is not json`,
			`{"command": "improve_prompt", "params": {}}`,
			`{"command": "teleport"}`,
			`{"command": "ping"}`)
		require.Len(t, responses, 4)
		assert.Equal(t, "error", responses[0].Status)
		assert.Equal(t, "error", responses[1].Status)
		assert.Equal(t, "error", responses[2].Status)
		assert.Equal(t, "success", responses[3].Status)
	})

	t.Run("blank lines are skipped", func(t *testing.T) {
		t.Parallel()
		responses := runRequests(t, newTestServer(t), "", "   ", `{"command": "ping"}`)
		require.Len(t, responses, 1)
	})
}

func TestTextParam(t *testing.T) {
	t.Parallel()

	_, err := textParam(map[string]interface{}{})
	assert.Error(t, err)

	_, err = textParam(map[string]interface{}{"text": 42})
	assert.Error(t, err)

	_, err = textParam(map[string]interface{}{"text": "  "})
	assert.Error(t, err)

	got, err := textParam(map[string]interface{}{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}
