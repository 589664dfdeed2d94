// internal/generation/heuristic_test.go
package generation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/promptsmith/api/schemas"
)

func TestHeuristicGenerator_CoversAllMethods(t *testing.T) {
	t.Parallel()
	g := NewHeuristic(zaptest.NewLogger(t))
	pc := &schemas.PromptContext{IsCoding: true, Complexity: schemas.ComplexityLow}

	for _, method := range schemas.AllMethods() {
		method := method
		t.Run(string(method), func(t *testing.T) {
			t.Parallel()
			cand, err := g.Generate(context.Background(), "fix this bug", pc, method)
			require.NoError(t, err)
			require.NotNil(t, cand)

			assert.Equal(t, method, cand.Method)
			assert.NotEqual(t, "fix this bug", cand.Text, "a rewriter must change the prompt")
			assert.Greater(t, cand.ScoreImprovement, 0.0)
			assert.NotEmpty(t, cand.Reasoning)
		})
	}
}

func TestHeuristicGenerator_Clarity(t *testing.T) {
	t.Parallel()
	g := NewHeuristic(zaptest.NewLogger(t))

	t.Run("removes vague terms and scales the estimate", func(t *testing.T) {
		t.Parallel()
		vague, err := g.Generate(context.Background(), "do something about the stuff", nil, schemas.MethodClarity)
		require.NoError(t, err)
		clean, err := g.Generate(context.Background(), "refactor the parser", nil, schemas.MethodClarity)
		require.NoError(t, err)

		assert.NotContains(t, strings.ToLower(vague.Text), "something")
		assert.NotContains(t, strings.ToLower(vague.Text), "stuff")
		assert.Greater(t, vague.ScoreImprovement, clean.ScoreImprovement,
			"more filler removed should mean a larger estimated gain")
	})
}

func TestHeuristicGenerator_Structure(t *testing.T) {
	t.Parallel()
	g := NewHeuristic(zaptest.NewLogger(t))

	unstructured, err := g.Generate(context.Background(), "build a parser for csv files", nil, schemas.MethodStructure)
	require.NoError(t, err)
	structured, err := g.Generate(context.Background(), "build a parser\n\n- input: csv\n- output: json", nil, schemas.MethodStructure)
	require.NoError(t, err)

	assert.Contains(t, unstructured.Text, "## Task")
	assert.Greater(t, unstructured.ScoreImprovement, structured.ScoreImprovement,
		"an already structured prompt has less to gain")
}

func TestHeuristicGenerator_ChainOfThoughtScalesWithComplexity(t *testing.T) {
	t.Parallel()
	g := NewHeuristic(zaptest.NewLogger(t))

	deltaFor := func(c schemas.Complexity) float64 {
		cand, err := g.Generate(context.Background(), "solve this", &schemas.PromptContext{Complexity: c}, schemas.MethodChainOfThought)
		require.NoError(t, err)
		return cand.ScoreImprovement
	}

	low := deltaFor(schemas.ComplexityLow)
	medium := deltaFor(schemas.ComplexityMedium)
	high := deltaFor(schemas.ComplexityHigh)
	assert.Greater(t, medium, low)
	assert.Greater(t, high, medium)
}

func TestHeuristicGenerator_FewShotFavorsWriting(t *testing.T) {
	t.Parallel()
	g := NewHeuristic(zaptest.NewLogger(t))

	writing, err := g.Generate(context.Background(), "draft a letter", &schemas.PromptContext{IsWriting: true}, schemas.MethodFewShot)
	require.NoError(t, err)
	coding, err := g.Generate(context.Background(), "draft a letter", &schemas.PromptContext{IsCoding: true}, schemas.MethodFewShot)
	require.NoError(t, err)

	assert.Greater(t, writing.ScoreImprovement, coding.ScoreImprovement)
	assert.Contains(t, writing.Text, "Example:")
}

func TestHeuristicGenerator_Errors(t *testing.T) {
	t.Parallel()
	g := NewHeuristic(zaptest.NewLogger(t))

	t.Run("unknown method", func(t *testing.T) {
		t.Parallel()
		_, err := g.Generate(context.Background(), "text", nil, schemas.Method("mystery"))
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := g.Generate(ctx, "text", nil, schemas.MethodClarity)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestHeuristicGenerator_Deterministic(t *testing.T) {
	t.Parallel()
	g := NewHeuristic(zaptest.NewLogger(t))
	pc := &schemas.PromptContext{IsAnalysis: true, Complexity: schemas.ComplexityMedium}

	first, err := g.Generate(context.Background(), "compare these options", pc, schemas.MethodSpecificity)
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), "compare these options", pc, schemas.MethodSpecificity)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
