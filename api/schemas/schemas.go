// File: api/schemas/schemas.go
// Description: Shared data model for the prompt improvement pipeline. These
// types cross package boundaries and are treated as immutable once produced.

package schemas

import (
	"encoding/json"
	"time"
)

// Complexity buckets a prompt by how much work it asks for.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// PromptContext is the classifier's structured summary of a raw prompt.
// It is owned by the pipeline invocation that produced it and is never
// mutated after creation.
type PromptContext struct {
	IsCoding   bool       `json:"is_coding"`
	IsWriting  bool       `json:"is_writing"`
	IsAnalysis bool       `json:"is_analysis"`
	Complexity Complexity `json:"complexity"`
	// Frameworks lists detected framework/domain tags (e.g. "react", "sql").
	Frameworks []string `json:"frameworks,omitempty"`
	WordCount  int      `json:"word_count"`
}

// Flags returns the active domain flags in a fixed, deterministic order.
// The order matters: it drives agent selection table lookups.
func (p *PromptContext) Flags() []string {
	flags := make([]string, 0, 3)
	if p.IsCoding {
		flags = append(flags, "coding")
	}
	if p.IsWriting {
		flags = append(flags, "writing")
	}
	if p.IsAnalysis {
		flags = append(flags, "analysis")
	}
	return flags
}

// CriterionScore holds the raw sub-score and weight for one scoring criterion.
type CriterionScore struct {
	Raw         float64 `json:"raw"` // in [0, 1]
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// EvaluationResult is a completed synchronous evaluation of a prompt.
type EvaluationResult struct {
	// OverallScore is the weighted aggregate on a 0-100 scale.
	OverallScore    float64                   `json:"overall_score"`
	Criteria        map[string]CriterionScore `json:"criteria"`
	Recommendations []string                  `json:"recommendations,omitempty"`
}

// DeferredEvaluation signals that scoring could not complete synchronously
// and must be resolved by an external judge. Payload is opaque to the
// pipeline; it is propagated outward untouched.
type DeferredEvaluation struct {
	Reason  string          `json:"reason"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EvaluationOutcome is the scorer's return envelope. Exactly one of Result
// or Deferred is set.
type EvaluationOutcome struct {
	Result   *EvaluationResult
	Deferred *DeferredEvaluation
}

// ImprovementCandidate is a proposed improved version of the input prompt,
// tagged with the method that produced it. Ownership transfers to the
// orchestrator, which discards all but the winning candidate.
type ImprovementCandidate struct {
	Text   string `json:"text"`
	Method Method `json:"method"`
	// ScoreImprovement is the estimated or measured score delta the
	// candidate claims over the original.
	ScoreImprovement float64 `json:"score_improvement"`
	Reasoning        string  `json:"reasoning,omitempty"`
}

// HistoryEntry is one completed orchestration outcome as retained by the
// history store.
type HistoryEntry struct {
	Text      string         `json:"text"`
	Score     float64        `json:"score"`
	Timestamp time.Time      `json:"timestamp"`
	Context   *PromptContext `json:"context,omitempty"`
}

// AnalyzeMetadata describes what happened in the analyze phase.
type AnalyzeMetadata struct {
	ClassifierOK bool `json:"classifier_ok"`
	ScorerOK     bool `json:"scorer_ok"`
	Fallback     bool `json:"fallback"`
}

// ImproveMetadata describes the candidate fan-out of the improve phase.
type ImproveMetadata struct {
	Skipped          bool   `json:"skipped"`
	MethodsAttempted int    `json:"methods_attempted"`
	MethodsSucceeded int    `json:"methods_succeeded"`
	Winner           Method `json:"winner,omitempty"`
}

// FinalizeMetadata describes re-scoring and recording in the finalize phase.
type FinalizeMetadata struct {
	Rescored      bool `json:"rescored"`
	RescoreFailed bool `json:"rescore_failed"`
	Recorded      bool `json:"recorded"`
}

// PhaseMetadata aggregates per-phase observability data. Tests rely on it.
type PhaseMetadata struct {
	Analyze       AnalyzeMetadata  `json:"analyze"`
	Improve       ImproveMetadata  `json:"improve"`
	Finalize      FinalizeMetadata `json:"finalize"`
	LearnLaunched bool             `json:"learn_launched"`
}

// OrchestrationResult is the externally visible output of one pipeline run.
// Immutable once returned.
type OrchestrationResult struct {
	RunID         string              `json:"run_id"`
	Success       bool                `json:"success"`
	Deferred      *DeferredEvaluation `json:"deferred,omitempty"`
	OriginalText  string              `json:"original_text"`
	FinalText     string              `json:"final_text"`
	OriginalScore float64             `json:"original_score"`
	FinalScore    float64             `json:"final_score"`
	Improved      bool                `json:"improved"`
	Context       *PromptContext      `json:"context,omitempty"`
	Duration      time.Duration       `json:"duration_ms"`
	Phases        PhaseMetadata       `json:"phases"`
}

// OutcomeStage identifies which path of the pipeline produced a record.
type OutcomeStage string

const (
	StageFallback OutcomeStage = "fallback"
	StageDeferred OutcomeStage = "deferred"
	StageFinal    OutcomeStage = "final"
)

// OutcomeRecord is the unit handed to the Recorder. Recording is always
// best-effort; a failed Record never affects the pipeline result.
type OutcomeRecord struct {
	RunID         string         `json:"run_id"`
	Stage         OutcomeStage   `json:"stage"`
	OriginalText  string         `json:"original_text"`
	FinalText     string         `json:"final_text,omitempty"`
	OriginalScore float64        `json:"original_score"`
	FinalScore    float64        `json:"final_score"`
	Improved      bool           `json:"improved"`
	Context       *PromptContext `json:"context,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// PatternReport summarizes recurring traits of high-scoring prompts.
type PatternReport struct {
	SampleSize       int      `json:"sample_size"`
	AverageScore     float64  `json:"average_score"`
	AverageWordCount float64  `json:"average_word_count"`
	CommonTags       []string `json:"common_tags,omitempty"`
	CommonOpeners    []string `json:"common_openers,omitempty"`
}
