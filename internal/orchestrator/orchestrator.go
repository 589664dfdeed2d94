// File: internal/orchestrator/orchestrator.go
// Description: Composes the analysis, improvement, recording and learning
// collaborators into a 4-phase pipeline. It is injected with fully configured
// components via interfaces, making it decoupled and testable.

package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/promptsmith/api/schemas"
	"github.com/xkilldash9x/promptsmith/internal/config"
	"github.com/xkilldash9x/promptsmith/internal/history"
)

const (
	// recordTimeout bounds each best-effort recorder call. Recording runs on
	// its own context so outcomes survive caller cancellation.
	recordTimeout = 10 * time.Second
	// extractionTimeout bounds a detached background extraction run.
	extractionTimeout = 2 * time.Minute
)

// Orchestrator runs the prompt improvement pipeline. Multiple Orchestrate
// calls may run concurrently against one instance; they share the history
// store and the background-learning guard.
type Orchestrator struct {
	cfg        config.OrchestratorConfig
	logger     *zap.Logger
	classifier schemas.ContextClassifier
	scorer     schemas.CriteriaScorer
	generator  schemas.CandidateGenerator
	recorder   schemas.Recorder
	extractor  schemas.PatternExtractor
	history    *history.Store
	limiter    *rate.Limiter

	// extractionInProgress is the single-flight guard for phase 4.
	extractionInProgress atomic.Bool
	bg                   sync.WaitGroup
}

// Option customizes an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithRateLimit throttles candidate generation calls across the fan-out.
func WithRateLimit(perSec float64, burst int) Option {
	return func(o *Orchestrator) {
		if perSec > 0 {
			if burst < 1 {
				burst = 1
			}
			o.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
		}
	}
}

// WithHistory substitutes a pre-populated history store. Used by WithConfig
// and by tests.
func WithHistory(store *history.Store) Option {
	return func(o *Orchestrator) {
		if store != nil {
			o.history = store
		}
	}
}

// New creates an Orchestrator with its collaborators provided as interfaces.
func New(
	cfg config.OrchestratorConfig,
	logger *zap.Logger,
	classifier schemas.ContextClassifier,
	scorer schemas.CriteriaScorer,
	generator schemas.CandidateGenerator,
	recorder schemas.Recorder,
	extractor schemas.PatternExtractor,
	opts ...Option,
) (*Orchestrator, error) {
	if logger == nil ||
		classifier == nil ||
		scorer == nil ||
		generator == nil ||
		recorder == nil ||
		extractor == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator configuration: %w", err)
	}

	o := &Orchestrator{
		cfg:        cfg,
		logger:     logger.Named("orchestrator"),
		classifier: classifier,
		scorer:     scorer,
		generator:  generator,
		recorder:   recorder,
		extractor:  extractor,
		history:    history.New(cfg.HistoryCapacity, logger),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// WithConfig derives a new Orchestrator using cfg while sharing the
// collaborators and history store. In-flight runs on the receiver keep the
// configuration they started with.
func (o *Orchestrator) WithConfig(cfg config.OrchestratorConfig) (*Orchestrator, error) {
	next, err := New(cfg, o.logger, o.classifier, o.scorer, o.generator, o.recorder, o.extractor, WithHistory(o.history))
	if err != nil {
		return nil, err
	}
	next.limiter = o.limiter
	return next, nil
}

// History exposes the store for observability consumers (read paths only).
func (o *Orchestrator) History() *history.Store {
	return o.history
}

// WaitBackground blocks until detached background work has drained. Intended
// for shutdown paths and tests.
func (o *Orchestrator) WaitBackground() {
	o.bg.Wait()
}

// Orchestrate evaluates and, when warranted, improves a prompt. It never
// panics and always returns a well-formed result; Success reflects whether
// the pipeline completed normally.
func (o *Orchestrator) Orchestrate(ctx context.Context, text string) (res *schemas.OrchestrationResult) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	runID := uuid.New().String()
	log := o.logger.With(zap.String("run_id", runID))

	res = &schemas.OrchestrationResult{
		RunID:        runID,
		OriginalText: text,
		FinalText:    text,
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic during orchestration", zap.Any("panic", r))
			res.Success = false
		}
		res.Duration = time.Since(start)
	}()

	log.Info("Orchestration started", zap.Int("text_len", len(text)))

	// -- Phase 1: Analyze --
	pc, outcome, err := o.analyze(ctx, text, res, log)
	res.Context = pc
	if err != nil {
		log.Warn("Analysis failed, taking fallback path", zap.Error(err))
		res.Phases.Analyze.Fallback = true
		o.recordBestEffort(log, &schemas.OutcomeRecord{
			RunID:        runID,
			Stage:        schemas.StageFallback,
			OriginalText: text,
			Context:      pc,
			Timestamp:    time.Now().UTC(),
		})
		res.Success = false
		return res
	}
	if outcome.Deferred != nil {
		// Scoring is delegated to an external judge; propagate the request
		// outward rather than inventing a score.
		log.Info("Evaluation deferred to external judge", zap.String("reason", outcome.Deferred.Reason))
		res.Deferred = outcome.Deferred
		o.recordBestEffort(log, &schemas.OutcomeRecord{
			RunID:        runID,
			Stage:        schemas.StageDeferred,
			OriginalText: text,
			Context:      pc,
			Timestamp:    time.Now().UTC(),
		})
		res.Success = true
		return res
	}

	originalScore := outcome.Result.OverallScore
	res.OriginalScore = originalScore
	res.FinalScore = originalScore

	// -- Phase 2: Improve --
	winner := o.improve(ctx, text, pc, originalScore, res, log)

	// -- Phase 3: Finalize --
	o.finalize(ctx, text, pc, originalScore, winner, res, log)

	// -- Phase 4: Background learning, detached --
	res.Phases.LearnLaunched = o.triggerLearning(log)

	res.Success = true
	log.Info("Orchestration finished",
		zap.Bool("improved", res.Improved),
		zap.Float64("original_score", res.OriginalScore),
		zap.Float64("final_score", res.FinalScore),
		zap.Duration("duration", time.Since(start)),
	)
	return res
}

// analyze runs classification and scoring concurrently. Both calls complete
// (or fail) before it returns.
func (o *Orchestrator) analyze(ctx context.Context, text string, res *schemas.OrchestrationResult, log *zap.Logger) (*schemas.PromptContext, *schemas.EvaluationOutcome, error) {
	var (
		pc      *schemas.PromptContext
		outcome *schemas.EvaluationOutcome
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pc, err = o.classifier.Classify(gctx, text)
		if err != nil {
			return fmt.Errorf("context classification failed: %w", err)
		}
		res.Phases.Analyze.ClassifierOK = true
		return nil
	})
	g.Go(func() error {
		var err error
		outcome, err = o.scorer.Evaluate(gctx, text)
		if err != nil {
			return fmt.Errorf("criteria scoring failed: %w", err)
		}
		if outcome == nil || (outcome.Result == nil && outcome.Deferred == nil) {
			return fmt.Errorf("criteria scorer returned an empty outcome")
		}
		res.Phases.Analyze.ScorerOK = true
		return nil
	})

	if err := g.Wait(); err != nil {
		return pc, nil, err
	}
	return pc, outcome, nil
}

// improve fans out one generation call per selected method and picks the
// best successful candidate. Returns nil when improvement is skipped or no
// candidate qualifies.
func (o *Orchestrator) improve(ctx context.Context, text string, pc *schemas.PromptContext, originalScore float64, res *schemas.OrchestrationResult, log *zap.Logger) *schemas.ImprovementCandidate {
	im := &res.Phases.Improve
	if originalScore >= o.cfg.ImprovementTrigger {
		log.Debug("Score meets improvement trigger, skipping generation",
			zap.Float64("score", originalScore),
			zap.Float64("trigger", o.cfg.ImprovementTrigger),
		)
		im.Skipped = true
		return nil
	}

	methods := o.selectMethods(pc)
	im.MethodsAttempted = len(methods)
	if len(methods) == 0 {
		log.Warn("No improvement methods configured for context", zap.Strings("flags", pc.Flags()))
		return nil
	}

	// results is indexed by the method's position in the selection order so
	// the collection step stays deterministic regardless of completion order.
	results := make([]*schemas.ImprovementCandidate, len(methods))
	var wg sync.WaitGroup
	for i, m := range methods {
		wg.Add(1)
		go func(i int, m schemas.Method) {
			defer wg.Done()
			mlog := log.With(zap.String("method", string(m)))
			defer func() {
				if r := recover(); r != nil {
					mlog.Error("Recovered from panic in candidate generation", zap.Any("panic", r))
				}
			}()

			if o.limiter != nil {
				if err := o.limiter.Wait(ctx); err != nil {
					mlog.Warn("Rate limiter wait aborted", zap.Error(err))
					return
				}
			}

			cand, err := callWithRetry(ctx, o.cfg.Timeout, o.cfg.RetryOnFailure, mlog,
				func(ctx context.Context) (*schemas.ImprovementCandidate, error) {
					return o.generator.Generate(ctx, text, pc, m)
				})
			if err != nil {
				mlog.Warn("Candidate generation failed, excluding method", zap.Error(err))
				return
			}
			if cand == nil || cand.ScoreImprovement <= 0 {
				mlog.Debug("Candidate offered no improvement, discarding")
				return
			}
			results[i] = cand
		}(i, m)
	}
	wg.Wait()

	// Selection: maximum score improvement; on exact ties the method that
	// appears earlier in the selection order wins (strict > keeps the first).
	var winner *schemas.ImprovementCandidate
	for _, cand := range results {
		if cand == nil {
			continue
		}
		im.MethodsSucceeded++
		if winner == nil || cand.ScoreImprovement > winner.ScoreImprovement {
			winner = cand
		}
	}
	if winner != nil {
		im.Winner = winner.Method
		log.Info("Selected winning candidate",
			zap.String("method", string(winner.Method)),
			zap.Float64("score_improvement", winner.ScoreImprovement),
			zap.Int("succeeded", im.MethodsSucceeded),
		)
	}
	return winner
}

// selectMethods resolves the ordered method list for a context: the lists of
// every active flag concatenated in flag order, falling back to "default",
// de-duplicated, and truncated to MaxConcurrentAgents.
func (o *Orchestrator) selectMethods(pc *schemas.PromptContext) []schemas.Method {
	var names []string
	for _, flag := range pc.Flags() {
		names = append(names, o.cfg.AgentSelection[flag]...)
	}
	if len(names) == 0 {
		names = o.cfg.AgentSelection["default"]
	}

	seen := make(map[schemas.Method]struct{}, len(names))
	methods := make([]schemas.Method, 0, len(names))
	for _, name := range names {
		m, err := schemas.ParseMethod(name)
		if err != nil {
			// Validated at config load; an unknown name here is operator error.
			o.logger.Warn("Ignoring unknown method in agent selection", zap.String("method", name))
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		methods = append(methods, m)
		if len(methods) == o.cfg.MaxConcurrentAgents {
			break
		}
	}
	return methods
}

// finalize re-scores the winning candidate, records the outcome and appends
// to history. Strictly sequential after the improve phase.
func (o *Orchestrator) finalize(ctx context.Context, text string, pc *schemas.PromptContext, originalScore float64, winner *schemas.ImprovementCandidate, res *schemas.OrchestrationResult, log *zap.Logger) {
	fin := &res.Phases.Finalize
	finalText, finalScore := text, originalScore

	if winner != nil {
		res.Improved = true
		finalText = winner.Text
		finalScore = originalScore + winner.ScoreImprovement

		outcome, err := o.scorer.Evaluate(ctx, winner.Text)
		if err != nil || outcome == nil || outcome.Result == nil {
			// Deferred re-scores land here too: keep the estimated delta.
			fin.RescoreFailed = true
			log.Warn("Re-scoring failed, keeping estimated final score",
				zap.Float64("estimated", finalScore), zap.Error(err))
		} else {
			fin.Rescored = true
			finalScore = outcome.Result.OverallScore
		}
	}

	res.FinalText = finalText
	res.FinalScore = finalScore

	fin.Recorded = o.recordBestEffort(log, &schemas.OutcomeRecord{
		RunID:         res.RunID,
		Stage:         schemas.StageFinal,
		OriginalText:  text,
		FinalText:     finalText,
		OriginalScore: originalScore,
		FinalScore:    finalScore,
		Improved:      res.Improved,
		Context:       pc,
		Timestamp:     time.Now().UTC(),
	})

	o.history.Append(schemas.HistoryEntry{
		Text:      finalText,
		Score:     finalScore,
		Timestamp: time.Now().UTC(),
		Context:   pc,
	})
}

// recordBestEffort persists an outcome record, logging and swallowing any
// failure. It runs on its own context so records survive caller cancellation.
func (o *Orchestrator) recordBestEffort(log *zap.Logger, rec *schemas.OutcomeRecord) bool {
	recordCtx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := o.recorder.Record(recordCtx, rec); err != nil {
		log.Warn("Failed to record outcome", zap.String("stage", string(rec.Stage)), zap.Error(err))
		return false
	}
	return true
}

// triggerLearning launches the detached background-learning check. At most
// one extraction runs per instance at any time; failures never reach a
// caller of Orchestrate. Returns whether an extraction was launched.
func (o *Orchestrator) triggerLearning(log *zap.Logger) bool {
	if !o.extractionInProgress.CompareAndSwap(false, true) {
		log.Debug("Pattern extraction already in progress, skipping trigger")
		return false
	}

	highScoring := o.history.HighScoring(o.cfg.HighQuality)
	if len(highScoring) < o.cfg.PatternExtractionMin {
		o.extractionInProgress.Store(false)
		return false
	}

	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		defer o.extractionInProgress.Store(false)
		defer func() {
			if r := recover(); r != nil {
				log.Error("Recovered from panic in pattern extraction", zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), extractionTimeout)
		defer cancel()

		report, err := o.extractor.Extract(ctx, highScoring)
		if err != nil {
			log.Warn("Pattern extraction failed", zap.Error(err))
			return
		}
		log.Info("Pattern extraction complete",
			zap.Int("sample_size", report.SampleSize),
			zap.Float64("average_score", report.AverageScore),
			zap.Strings("common_tags", report.CommonTags),
		)
	}()
	return true
}
