// File: api/schemas/interfaces.go
// Description: Collaborator interfaces consumed by the orchestrator. Concrete
// implementations live elsewhere and may be slow, remote, or unavailable;
// every call takes a context so the pipeline can bound its waiting.

package schemas

import "context"

// ContextClassifier inspects raw text and derives a PromptContext.
// A failure here triggers the orchestrator's fallback path.
type ContextClassifier interface {
	Classify(ctx context.Context, text string) (*PromptContext, error)
}

// CriteriaScorer evaluates a prompt. It either completes synchronously with
// a Result or returns a Deferred delegation request; it never does both.
type CriteriaScorer interface {
	Evaluate(ctx context.Context, text string) (*EvaluationOutcome, error)
}

// CandidateGenerator attempts to produce an improved prompt variant using
// the named method. Calls may fail or hang; the orchestrator always invokes
// them through its timeout/retry combinator.
type CandidateGenerator interface {
	Generate(ctx context.Context, text string, pc *PromptContext, method Method) (*ImprovementCandidate, error)
}

// Recorder persists an outcome record. Best-effort: callers log failures
// and move on.
type Recorder interface {
	Record(ctx context.Context, rec *OutcomeRecord) error
}

// PatternExtractor performs batch analysis over high-scoring history
// entries. Invoked only from the detached background-learning path.
type PatternExtractor interface {
	Extract(ctx context.Context, entries []HistoryEntry) (*PatternReport, error)
}
