// File: cmd/app.go
// Description: Shared composition for the CLI commands. Builds the pipeline
// collaborators from configuration and hands back a ready orchestrator.

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/promptsmith/api/schemas"
	"github.com/xkilldash9x/promptsmith/internal/analysis"
	"github.com/xkilldash9x/promptsmith/internal/config"
	"github.com/xkilldash9x/promptsmith/internal/generation"
	"github.com/xkilldash9x/promptsmith/internal/orchestrator"
	"github.com/xkilldash9x/promptsmith/internal/patterns"
	"github.com/xkilldash9x/promptsmith/internal/recorder"
	"github.com/xkilldash9x/promptsmith/internal/scoring"
)

// buildOrchestrator wires the full pipeline. The returned cleanup releases
// any held resources (currently the database pool) and must be called after
// background work has drained.
func buildOrchestrator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*orchestrator.Orchestrator, func(), error) {
	classifier := analysis.NewClassifier(logger)

	scorer, err := scoring.NewScorer(cfg.Scoring(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize scorer: %w", err)
	}

	generator, err := generation.New(cfg.Generation(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	rec, cleanup, err := buildRecorder(ctx, cfg.Recorder(), logger)
	if err != nil {
		return nil, nil, err
	}

	extractor := patterns.NewKeywordExtractor(logger)

	var opts []orchestrator.Option
	if gen := cfg.Generation(); gen.RatePerSec > 0 {
		opts = append(opts, orchestrator.WithRateLimit(gen.RatePerSec, gen.Burst))
	}

	orch, err := orchestrator.New(cfg.Orchestrator(), logger, classifier, scorer, generator, rec, extractor, opts...)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to initialize orchestrator: %w", err)
	}
	return orch, cleanup, nil
}

// buildRecorder selects Postgres persistence when a DSN is configured and the
// no-op recorder otherwise.
func buildRecorder(ctx context.Context, cfg config.RecorderConfig, logger *zap.Logger) (schemas.Recorder, func(), error) {
	if cfg.DSN == "" {
		logger.Debug("No recorder DSN configured, outcomes will not be persisted")
		return recorder.NewNop(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	rec, err := recorder.NewPostgres(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return rec, pool.Close, nil
}

// readPromptArg resolves the prompt text for a command: a file path argument,
// "-" (or no argument) for stdin.
func readPromptArg(args []string) (string, error) {
	var (
		raw []byte
		err error
	)
	if len(args) == 0 || args[0] == "-" {
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
	} else {
		raw, err = os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read prompt file: %w", err)
		}
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", fmt.Errorf("prompt text is empty")
	}
	return text, nil
}
