// File: internal/analysis/classifier.go
// Description: Heuristic prompt classification. Derives a PromptContext from
// raw text using keyword and pattern matching; no network calls, so
// classification is deterministic and cheap enough to run on every request.

package analysis

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/promptsmith/api/schemas"
)

// Word-count boundaries for the complexity buckets.
const (
	mediumComplexityWords = 50
	highComplexityWords   = 300
)

var codingKeywords = []string{
	"code", "function", "bug", "debug", "compile", "implement", "refactor",
	"api", "endpoint", "class", "method", "variable", "script", "algorithm",
	"unit test", "stack trace", "regex", "query", "schema", "repository",
}

var writingKeywords = []string{
	"write", "essay", "article", "blog", "story", "email", "letter",
	"summarize", "rewrite", "paraphrase", "draft", "edit", "proofread",
	"tone", "audience", "paragraph", "headline",
}

var analysisKeywords = []string{
	"analyze", "analyse", "compare", "evaluate", "assess", "investigate",
	"pros and cons", "trade-off", "tradeoff", "root cause", "why does",
	"explain", "breakdown", "statistics", "trend", "data",
}

// frameworkPatterns tags well-known frameworks, languages and domains. Word
// boundaries keep "go" from matching inside "good" and "r" inside everything.
var frameworkPatterns = map[string]*regexp.Regexp{
	"react":      regexp.MustCompile(`(?i)\breact(\.js)?\b`),
	"vue":        regexp.MustCompile(`(?i)\bvue(\.js)?\b`),
	"django":     regexp.MustCompile(`(?i)\bdjango\b`),
	"rails":      regexp.MustCompile(`(?i)\b(ruby on )?rails\b`),
	"spring":     regexp.MustCompile(`(?i)\bspring\s?(boot|framework)\b`),
	"kubernetes": regexp.MustCompile(`(?i)\b(kubernetes|k8s)\b`),
	"docker":     regexp.MustCompile(`(?i)\bdocker(file)?\b`),
	"sql":        regexp.MustCompile(`(?i)\b(sql|postgres(ql)?|mysql|sqlite)\b`),
	"python":     regexp.MustCompile(`(?i)\bpython\b`),
	"golang":     regexp.MustCompile(`(?i)\b(golang|\bgo\s+(code|program|module|package))\b`),
	"javascript": regexp.MustCompile(`(?i)\b(javascript|typescript|node(\.js)?)\b`),
	"terraform":  regexp.MustCompile(`(?i)\bterraform\b`),
}

var codeFencePattern = regexp.MustCompile("(?s)```.*```|`[^`\n]+`")

// Classifier implements schemas.ContextClassifier with local heuristics.
type Classifier struct {
	logger *zap.Logger
}

// NewClassifier creates a heuristic classifier.
func NewClassifier(logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{logger: logger.Named("classifier")}
}

// Classify derives a PromptContext from text. It honors ctx cancellation at
// entry but otherwise completes synchronously.
func (c *Classifier) Classify(ctx context.Context, text string) (*schemas.PromptContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lower := strings.ToLower(text)
	words := strings.Fields(text)

	pc := &schemas.PromptContext{
		IsCoding:   containsAny(lower, codingKeywords) || codeFencePattern.MatchString(text),
		IsWriting:  containsAny(lower, writingKeywords),
		IsAnalysis: containsAny(lower, analysisKeywords),
		WordCount:  len(words),
	}

	for tag, pattern := range frameworkPatterns {
		if pattern.MatchString(text) {
			pc.Frameworks = append(pc.Frameworks, tag)
			// Framework mentions are a strong coding signal even without an
			// explicit coding keyword.
			pc.IsCoding = true
		}
	}
	// Map iteration order is random; keep the tag list deterministic.
	sort.Strings(pc.Frameworks)

	pc.Complexity = classifyComplexity(len(words), pc)

	c.logger.Debug("Classified prompt",
		zap.Strings("flags", pc.Flags()),
		zap.String("complexity", string(pc.Complexity)),
		zap.Int("word_count", pc.WordCount),
		zap.Strings("frameworks", pc.Frameworks),
	)
	return pc, nil
}

// classifyComplexity buckets a prompt by length and breadth. Multi-domain
// prompts get bumped one bucket because they demand more of the generator.
func classifyComplexity(wordCount int, pc *schemas.PromptContext) schemas.Complexity {
	domains := len(pc.Flags())

	switch {
	case wordCount >= highComplexityWords || (wordCount >= mediumComplexityWords && domains >= 2):
		return schemas.ComplexityHigh
	case wordCount >= mediumComplexityWords || domains >= 2:
		return schemas.ComplexityMedium
	default:
		return schemas.ComplexityLow
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
