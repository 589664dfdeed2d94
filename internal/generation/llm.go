// File: internal/generation/llm.go
// Description: LLM-backed candidate generation. Each method maps to a system
// prompt; the model returns a structured JSON candidate which is validated
// before it enters the pipeline.

package generation

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/promptsmith/api/schemas"
	"github.com/xkilldash9x/promptsmith/internal/llmclient"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const llmSystemPromptBase = `You are an expert prompt engineer. Rewrite the user's prompt to improve it along one specific dimension.
Respond with a single JSON object of the form:
{"improved_prompt": "<the rewritten prompt>", "score_improvement": <estimated 0-100 score gain as a number>, "reasoning": "<one sentence>"}
Do not change the intent of the prompt. Do not answer the prompt itself.`

var methodInstructions = map[schemas.Method]string{
	schemas.MethodClarity:        "Dimension: clarity. Remove ambiguity and filler; make the request unmistakable.",
	schemas.MethodSpecificity:    "Dimension: specificity. Add concrete details, names, quantities and an explicit output format.",
	schemas.MethodStructure:      "Dimension: structure. Reorganize the prompt into clearly labeled sections or lists.",
	schemas.MethodChainOfThought: "Dimension: chain of thought. Instruct the model to reason step by step before answering.",
	schemas.MethodFewShot:        "Dimension: few-shot. Add one or two representative input/output examples.",
}

// llmCandidate is the JSON shape the model is asked to produce.
type llmCandidate struct {
	ImprovedPrompt   string  `json:"improved_prompt"`
	ScoreImprovement float64 `json:"score_improvement"`
	Reasoning        string  `json:"reasoning"`
}

// LLMGenerator implements schemas.CandidateGenerator on top of a remote
// model. Calls inherit deadline and cancellation from ctx; the orchestrator
// wraps them in its timeout/retry combinator.
type LLMGenerator struct {
	client llmclient.Client
	logger *zap.Logger
}

// NewLLM builds an LLM-backed generator.
func NewLLM(client llmclient.Client, logger *zap.Logger) (*LLMGenerator, error) {
	if client == nil {
		return nil, fmt.Errorf("cannot initialize LLM generator with a nil client")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMGenerator{client: client, logger: logger.Named("generator.llm")}, nil
}

// Generate asks the model for an improved variant of text using method.
func (g *LLMGenerator) Generate(ctx context.Context, text string, pc *schemas.PromptContext, method schemas.Method) (*schemas.ImprovementCandidate, error) {
	instruction, ok := methodInstructions[method]
	if !ok {
		return nil, fmt.Errorf("no instruction registered for method %q", method)
	}

	raw, err := g.client.GenerateContent(ctx, llmclient.GenerationRequest{
		SystemPrompt: llmSystemPromptBase + "\n" + instruction,
		UserPrompt:   buildUserPrompt(text, pc),
		ForceJSON:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed for method %q: %w", method, err)
	}

	var parsed llmCandidate
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode LLM candidate for method %q: %w", method, err)
	}
	if strings.TrimSpace(parsed.ImprovedPrompt) == "" {
		return nil, fmt.Errorf("LLM returned an empty candidate for method %q", method)
	}

	g.logger.Debug("Generated LLM candidate",
		zap.String("method", string(method)),
		zap.Float64("claimed_delta", parsed.ScoreImprovement),
	)
	return &schemas.ImprovementCandidate{
		Text:             parsed.ImprovedPrompt,
		Method:           method,
		ScoreImprovement: parsed.ScoreImprovement,
		Reasoning:        parsed.Reasoning,
	}, nil
}

func buildUserPrompt(text string, pc *schemas.PromptContext) string {
	var b strings.Builder
	if pc != nil {
		fmt.Fprintf(&b, "Prompt domain flags: %s. Complexity: %s.\n",
			strings.Join(pc.Flags(), ", "), pc.Complexity)
		if len(pc.Frameworks) > 0 {
			fmt.Fprintf(&b, "Detected technologies: %s.\n", strings.Join(pc.Frameworks, ", "))
		}
	}
	b.WriteString("Prompt to improve:\n")
	b.WriteString(text)
	return b.String()
}

// stripCodeFence tolerates models that wrap their JSON in a markdown fence
// despite the JSON response mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
