// File: internal/generation/generation.go
package generation

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/promptsmith/api/schemas"
	"github.com/xkilldash9x/promptsmith/internal/config"
	"github.com/xkilldash9x/promptsmith/internal/llmclient"
)

// New selects a candidate generator backend from configuration.
func New(cfg config.GenerationConfig, logger *zap.Logger) (schemas.CandidateGenerator, error) {
	switch cfg.Mode {
	case "heuristic":
		return NewHeuristic(logger), nil
	case "llm":
		client, err := llmclient.NewGeminiClient(cfg.LLM, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
		}
		return NewLLM(client, logger)
	default:
		return nil, fmt.Errorf("unknown generation mode %q", cfg.Mode)
	}
}
