// File: internal/generation/heuristic.go
// Description: Deterministic, offline candidate generation. Each improvement
// method is a rule-based rewriter; the estimated score delta reflects how
// much the rewrite is expected to help the classified context.

package generation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/promptsmith/api/schemas"
)

var vagueTerms = []string{
	"something", "stuff", "things", "whatever", "somehow",
	"kind of", "sort of",
}

var (
	bulletPattern     = regexp.MustCompile(`(?m)^\s*([-*•]|\d+[.)])\s+`)
	digitPattern      = regexp.MustCompile(`\d`)
	whitespacePattern = regexp.MustCompile(`[ \t]{2,}`)
)

type rewriteFunc func(text string, pc *schemas.PromptContext) (improved string, delta float64, reasoning string)

// HeuristicGenerator implements schemas.CandidateGenerator without any
// external calls. Output is a pure function of its inputs.
type HeuristicGenerator struct {
	logger    *zap.Logger
	rewriters map[schemas.Method]rewriteFunc
}

// NewHeuristic builds the rule-based generator covering every known method.
func NewHeuristic(logger *zap.Logger) *HeuristicGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeuristicGenerator{
		logger: logger.Named("generator.heuristic"),
		rewriters: map[schemas.Method]rewriteFunc{
			schemas.MethodClarity:        rewriteClarity,
			schemas.MethodSpecificity:    rewriteSpecificity,
			schemas.MethodStructure:      rewriteStructure,
			schemas.MethodChainOfThought: rewriteChainOfThought,
			schemas.MethodFewShot:        rewriteFewShot,
		},
	}
}

// Generate applies the rewriter for method to text.
func (g *HeuristicGenerator) Generate(ctx context.Context, text string, pc *schemas.PromptContext, method schemas.Method) (*schemas.ImprovementCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rewrite, ok := g.rewriters[method]
	if !ok {
		return nil, fmt.Errorf("no rewriter registered for method %q", method)
	}

	improved, delta, reasoning := rewrite(text, pc)
	g.logger.Debug("Generated heuristic candidate",
		zap.String("method", string(method)),
		zap.Float64("estimated_delta", delta),
	)
	return &schemas.ImprovementCandidate{
		Text:             improved,
		Method:           method,
		ScoreImprovement: delta,
		Reasoning:        reasoning,
	}, nil
}

// rewriteClarity strips vague filler and asks for an explicit outcome. The
// more filler it removes, the larger the estimated gain.
func rewriteClarity(text string, pc *schemas.PromptContext) (string, float64, string) {
	cleaned := text
	fixes := 0
	for _, term := range vagueTerms {
		pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b\s*`)
		if pattern.MatchString(cleaned) {
			cleaned = pattern.ReplaceAllString(cleaned, "")
			fixes++
		}
	}
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	improved := cleaned + "\n\nBe explicit about the desired outcome and avoid ambiguous terms."
	delta := 3 + 2*float64(fixes)
	if delta > 12 {
		delta = 12
	}
	return improved, delta, fmt.Sprintf("removed %d vague terms and demanded an explicit outcome", fixes)
}

// rewriteSpecificity asks for concrete details. Prompts that carry no
// quantities at all have the most to gain.
func rewriteSpecificity(text string, pc *schemas.PromptContext) (string, float64, string) {
	improved := strings.TrimSpace(text) +
		"\n\nSpecify the exact subject, the quantities involved, and the expected output format."
	delta := 4.0
	if !digitPattern.MatchString(text) {
		delta = 8
	}
	return improved, delta, "requested concrete details and quantities"
}

// rewriteStructure reshapes the prompt into labeled sections. Worth little
// when the prompt is already visibly organized.
func rewriteStructure(text string, pc *schemas.PromptContext) (string, float64, string) {
	improved := "## Task\n" + strings.TrimSpace(text) +
		"\n\n## Requirements\n- State any constraints explicitly\n\n## Output\n- Describe the expected format"
	delta := 10.0
	if bulletPattern.MatchString(text) || strings.Contains(text, "\n\n") {
		delta = 3
	}
	return improved, delta, "organized the prompt into task, requirements and output sections"
}

// rewriteChainOfThought asks for visible intermediate reasoning. Pays off in
// proportion to the complexity of the request.
func rewriteChainOfThought(text string, pc *schemas.PromptContext) (string, float64, string) {
	improved := strings.TrimSpace(text) +
		"\n\nWork through the problem step by step and show the intermediate reasoning before the final answer."
	delta := 4.0
	if pc != nil {
		switch pc.Complexity {
		case schemas.ComplexityHigh:
			delta = 10
		case schemas.ComplexityMedium:
			delta = 7
		}
	}
	return improved, delta, "requested step-by-step reasoning"
}

// rewriteFewShot scaffolds an input/output example. Most useful for writing
// tasks where the desired register is hard to describe.
func rewriteFewShot(text string, pc *schemas.PromptContext) (string, float64, string) {
	improved := strings.TrimSpace(text) +
		"\n\nExample:\nInput: <a representative input>\nExpected output: <the ideal response>\nFollow the same pattern for the real input."
	delta := 5.0
	if pc != nil && pc.IsWriting {
		delta = 8
	}
	return improved, delta, "added an input/output example scaffold"
}
