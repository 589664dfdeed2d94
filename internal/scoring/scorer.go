// File: internal/scoring/scorer.go
// Description: Rule-based prompt evaluation. Scores a prompt against weighted
// criteria on a 0-100 scale, or defers evaluation to an external judge when
// the prompt is too large to assess locally.

package scoring

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/promptsmith/api/schemas"
	"github.com/xkilldash9x/promptsmith/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Criterion names. They key both the weight table and the result map.
const (
	CriterionClarity       = "clarity"
	CriterionSpecificity   = "specificity"
	CriterionStructure     = "structure"
	CriterionContext       = "context"
	CriterionActionability = "actionability"
)

// defaultWeights is the built-in weighting; config may override per criterion.
var defaultWeights = map[string]float64{
	CriterionClarity:       0.25,
	CriterionSpecificity:   0.25,
	CriterionStructure:     0.15,
	CriterionContext:       0.15,
	CriterionActionability: 0.20,
}

var criterionDescriptions = map[string]string{
	CriterionClarity:       "The request is unambiguous and easy to follow",
	CriterionSpecificity:   "Concrete details, names and quantities are given",
	CriterionStructure:     "The prompt is organized into readable units",
	CriterionContext:       "Background and constraints are stated",
	CriterionActionability: "The expected action and output are explicit",
}

// recommendationThreshold: criteria scoring below this raw value produce a
// recommendation in the result.
const recommendationThreshold = 0.6

var recommendations = map[string]string{
	CriterionClarity:       "Shorten sentences and replace vague terms with precise ones",
	CriterionSpecificity:   "Add concrete names, quantities or examples of what you want",
	CriterionStructure:     "Break the prompt into paragraphs or a bulleted list",
	CriterionContext:       "State the background, audience and constraints up front",
	CriterionActionability: "Open with a direct instruction and describe the expected output",
}

// deferralPayload is the opaque envelope handed to the external judge when a
// prompt exceeds the local scoring limit.
type deferralPayload struct {
	WordCount int    `json:"word_count"`
	Excerpt   string `json:"excerpt"`
	// Criteria names the dimensions the judge is expected to score.
	Criteria []string `json:"criteria"`
}

const excerptRunes = 500

var vagueWords = []string{
	"something", "stuff", "things", "whatever", "somehow", "maybe",
	"kind of", "sort of", "etc",
}

var quantifierPhrases = []string{
	"exactly", "at least", "at most", "no more than", "between",
	"fewer than", "more than", "up to",
}

var constraintPhrases = []string{
	"must", "should", "require", "need to", "avoid", "do not", "don't",
	"only", "never", "always",
}

var backgroundPhrases = []string{
	"context", "background", "given", "currently", "we are", "we have",
	"i am", "i'm", "my ", "our ",
}

var deliverablePhrases = []string{
	"output", "format", "return", "respond", "provide", "include",
	"list the", "as json", "as a table", "markdown",
}

var imperativeOpeners = []string{
	"write", "create", "build", "fix", "list", "explain", "summarize",
	"generate", "describe", "implement", "compare", "analyze", "analyse",
	"review", "refactor", "translate", "draft", "design", "make", "find",
}

var (
	bulletPattern   = regexp.MustCompile(`(?m)^\s*([-*•]|\d+[.)])\s+`)
	headingPattern  = regexp.MustCompile(`(?m)^\s*(#{1,6}\s+\S|[A-Za-z][\w /-]{0,40}:)\s*`)
	sentenceSplit   = regexp.MustCompile(`[.!?]+`)
	digitPattern    = regexp.MustCompile(`\d`)
	backtickPattern = regexp.MustCompile("`[^`\n]+`|(?s)```.*```")
	quotedPattern   = regexp.MustCompile(`"[^"\n]+"`)
)

// Scorer implements schemas.CriteriaScorer with local heuristics. Evaluation
// is deterministic: the same text always yields the same outcome.
type Scorer struct {
	cfg     config.ScoringConfig
	weights map[string]float64
	logger  *zap.Logger
}

// NewScorer builds a Scorer, merging any configured weight overrides over the
// defaults. Unknown criterion names in the override table are rejected.
func NewScorer(cfg config.ScoringConfig, logger *zap.Logger) (*Scorer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	weights := make(map[string]float64, len(defaultWeights))
	for name, w := range defaultWeights {
		weights[name] = w
	}
	for name, w := range cfg.Weights {
		if _, known := defaultWeights[name]; !known {
			return nil, fmt.Errorf("unknown scoring criterion %q in weight overrides", name)
		}
		if w < 0 {
			return nil, fmt.Errorf("weight for criterion %q must not be negative", name)
		}
		weights[name] = w
	}
	return &Scorer{cfg: cfg, weights: weights, logger: logger.Named("scorer")}, nil
}

// Evaluate scores text against the weighted criteria, or defers when the
// prompt exceeds the configured local scoring limit.
func (s *Scorer) Evaluate(ctx context.Context, text string) (*schemas.EvaluationOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	words := strings.Fields(text)
	if s.cfg.DelegateOverWords > 0 && len(words) > s.cfg.DelegateOverWords {
		return s.deferToJudge(text, len(words))
	}

	lower := strings.ToLower(text)
	criteria := map[string]schemas.CriterionScore{
		CriterionClarity:       s.criterion(CriterionClarity, scoreClarity(text, lower, words)),
		CriterionSpecificity:   s.criterion(CriterionSpecificity, scoreSpecificity(text, lower, words)),
		CriterionStructure:     s.criterion(CriterionStructure, scoreStructure(text, words)),
		CriterionContext:       s.criterion(CriterionContext, scoreContext(text, lower, words)),
		CriterionActionability: s.criterion(CriterionActionability, scoreActionability(lower)),
	}

	var weightedSum, weightTotal float64
	for _, c := range criteria {
		weightedSum += c.Raw * c.Weight
		weightTotal += c.Weight
	}
	overall := 0.0
	if weightTotal > 0 {
		overall = 100 * weightedSum / weightTotal
	}

	result := &schemas.EvaluationResult{
		OverallScore:    overall,
		Criteria:        criteria,
		Recommendations: buildRecommendations(criteria),
	}
	s.logger.Debug("Evaluated prompt",
		zap.Float64("overall_score", overall),
		zap.Int("word_count", len(words)),
	)
	return &schemas.EvaluationOutcome{Result: result}, nil
}

// deferToJudge builds the deferral envelope for an external judge. The
// payload is opaque to the rest of the pipeline.
func (s *Scorer) deferToJudge(text string, wordCount int) (*schemas.EvaluationOutcome, error) {
	excerpt := []rune(text)
	if len(excerpt) > excerptRunes {
		excerpt = excerpt[:excerptRunes]
	}

	names := make([]string, 0, len(s.weights))
	for name := range s.weights {
		names = append(names, name)
	}
	sort.Strings(names)

	payload, err := json.Marshal(deferralPayload{
		WordCount: wordCount,
		Excerpt:   string(excerpt),
		Criteria:  names,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode deferral payload: %w", err)
	}

	s.logger.Info("Deferring evaluation to external judge",
		zap.Int("word_count", wordCount),
		zap.Int("limit", s.cfg.DelegateOverWords),
	)
	return &schemas.EvaluationOutcome{
		Deferred: &schemas.DeferredEvaluation{
			Reason:  fmt.Sprintf("prompt length %d words exceeds local scoring limit of %d", wordCount, s.cfg.DelegateOverWords),
			Payload: payload,
		},
	}, nil
}

func (s *Scorer) criterion(name string, raw float64) schemas.CriterionScore {
	return schemas.CriterionScore{
		Raw:         clamp01(raw),
		Weight:      s.weights[name],
		Description: criterionDescriptions[name],
	}
}

func buildRecommendations(criteria map[string]schemas.CriterionScore) []string {
	// Stable output order: iterate names sorted, not the map.
	names := make([]string, 0, len(criteria))
	for name := range criteria {
		names = append(names, name)
	}
	sort.Strings(names)

	var recs []string
	for _, name := range names {
		if criteria[name].Raw < recommendationThreshold {
			recs = append(recs, recommendations[name])
		}
	}
	return recs
}

// -- Per-criterion heuristics. Each returns a raw value in [0, 1]. --

func scoreClarity(text, lower string, words []string) float64 {
	s := 0.4
	if len(words) >= 5 {
		s += 0.2
	}
	if !containsAny(lower, vagueWords) {
		s += 0.2
	}
	if avgSentenceLength(text, words) <= 25 {
		s += 0.2
	}
	return s
}

func scoreSpecificity(text, lower string, words []string) float64 {
	s := 0.3
	if digitPattern.MatchString(text) {
		s += 0.2
	}
	if backtickPattern.MatchString(text) || quotedPattern.MatchString(text) {
		s += 0.2
	}
	if containsAny(lower, quantifierPhrases) {
		s += 0.15
	}
	if len(words) >= 15 {
		s += 0.15
	}
	return s
}

func scoreStructure(text string, words []string) float64 {
	s := 0.3
	if bulletPattern.MatchString(text) {
		s += 0.25
	}
	if strings.Contains(text, "\n\n") {
		s += 0.2
	}
	if headingPattern.MatchString(text) {
		s += 0.15
	}
	// A short prompt does not need visible structure to be readable.
	if len(words) < 80 {
		s += 0.1
	}
	return s
}

func scoreContext(text, lower string, words []string) float64 {
	s := 0.3
	if containsAny(lower, backgroundPhrases) {
		s += 0.25
	}
	if containsAny(lower, constraintPhrases) {
		s += 0.2
	}
	if backtickPattern.MatchString(text) || strings.Contains(lower, "for example") || strings.Contains(lower, "e.g.") {
		s += 0.15
	}
	if len(words) >= 30 {
		s += 0.1
	}
	return s
}

func scoreActionability(lower string) float64 {
	s := 0.3
	trimmed := strings.TrimSpace(lower)
	for _, verb := range imperativeOpeners {
		if strings.HasPrefix(trimmed, verb+" ") {
			s += 0.3
			break
		}
	}
	if containsAny(lower, deliverablePhrases) {
		s += 0.2
	}
	if strings.Contains(lower, "?") || containsAny(lower, imperativeOpeners) {
		s += 0.2
	}
	return s
}

func avgSentenceLength(text string, words []string) float64 {
	sentences := 0
	for _, part := range sentenceSplit.Split(text, -1) {
		if strings.TrimSpace(part) != "" {
			sentences++
		}
	}
	if sentences == 0 {
		sentences = 1
	}
	return float64(len(words)) / float64(sentences)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
