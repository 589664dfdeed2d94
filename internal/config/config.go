// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/promptsmith/api/schemas"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Orchestrator() OrchestratorConfig
	Scoring() ScoringConfig
	Generation() GenerationConfig
	Recorder() RecorderConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg       LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	OrchestratorCfg OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	ScoringCfg      ScoringConfig      `mapstructure:"scoring" yaml:"scoring"`
	GenerationCfg   GenerationConfig   `mapstructure:"generation" yaml:"generation"`
	RecorderCfg     RecorderConfig     `mapstructure:"recorder" yaml:"recorder"`
}

// -- Interface Method Implementations --

func (c *Config) Logger() LoggerConfig             { return c.LoggerCfg }
func (c *Config) Orchestrator() OrchestratorConfig { return c.OrchestratorCfg }
func (c *Config) Scoring() ScoringConfig           { return c.ScoringCfg }
func (c *Config) Generation() GenerationConfig     { return c.GenerationCfg }
func (c *Config) Recorder() RecorderConfig         { return c.RecorderCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// OrchestratorConfig tunes the improvement pipeline. It is treated as an
// immutable value for the duration of any in-flight run; updating it yields
// a new orchestrator rather than mutating a live one.
type OrchestratorConfig struct {
	// ImprovementTrigger is the score below which improvement is attempted.
	ImprovementTrigger float64 `mapstructure:"improvement_trigger" yaml:"improvement_trigger"`
	// HighQuality is the score at or above which a history entry counts
	// toward background pattern learning.
	HighQuality float64 `mapstructure:"high_quality" yaml:"high_quality"`
	// PatternExtractionMin is the minimum number of high-quality entries
	// before learning triggers.
	PatternExtractionMin int `mapstructure:"pattern_extraction_min" yaml:"pattern_extraction_min"`
	// HistoryCapacity bounds the FIFO history store.
	HistoryCapacity int `mapstructure:"history_capacity" yaml:"history_capacity"`
	// MaxConcurrentAgents caps the candidate fan-out width.
	MaxConcurrentAgents int `mapstructure:"max_concurrent_agents" yaml:"max_concurrent_agents"`
	// Timeout bounds each individual candidate generation call.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// RetryOnFailure enables one unbounded retry after a timeout or error.
	RetryOnFailure bool `mapstructure:"retry_on_failure" yaml:"retry_on_failure"`
	// AgentSelection maps a context flag ("coding", "writing", "analysis",
	// or "default") to an ordered list of improvement methods.
	AgentSelection map[string][]string `mapstructure:"agent_selection" yaml:"agent_selection"`
}

// ScoringConfig tunes the built-in criteria scorer.
type ScoringConfig struct {
	// Weights overrides the default per-criterion weights when non-empty.
	Weights map[string]float64 `mapstructure:"weights" yaml:"weights"`
	// DelegateOverWords defers prompts longer than this to an external
	// judge instead of scoring them synchronously. Zero disables deferral.
	DelegateOverWords int `mapstructure:"delegate_over_words" yaml:"delegate_over_words"`
}

// GenerationConfig selects and tunes the candidate generator backend.
type GenerationConfig struct {
	// Mode is "heuristic" (deterministic rewriters) or "llm".
	Mode string `mapstructure:"mode" yaml:"mode"`
	// RatePerSec throttles generation calls across the fan-out. Zero
	// disables throttling.
	RatePerSec float64   `mapstructure:"rate_per_sec" yaml:"rate_per_sec"`
	Burst      int       `mapstructure:"burst" yaml:"burst"`
	LLM        LLMConfig `mapstructure:"llm" yaml:"llm"`
}

// LLMConfig defines the configuration for the LLM-backed generator.
type LLMConfig struct {
	Model         string            `mapstructure:"model" yaml:"model"`
	APIKey        string            `mapstructure:"api_key" yaml:"-"`
	Endpoint      string            `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout    time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature   float64           `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens     int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	SafetyFilters map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
}

// RecorderConfig configures best-effort outcome persistence. An empty DSN
// selects the no-op recorder.
type RecorderConfig struct {
	DSN string `mapstructure:"dsn" yaml:"-"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "promptsmith")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Orchestrator --
	v.SetDefault("orchestrator.improvement_trigger", 70.0)
	v.SetDefault("orchestrator.high_quality", 85.0)
	v.SetDefault("orchestrator.pattern_extraction_min", 10)
	v.SetDefault("orchestrator.history_capacity", 100)
	v.SetDefault("orchestrator.max_concurrent_agents", 3)
	v.SetDefault("orchestrator.timeout", "10s")
	v.SetDefault("orchestrator.retry_on_failure", true)
	v.SetDefault("orchestrator.agent_selection", map[string][]string{
		"coding":   {"specificity", "structure", "chain_of_thought"},
		"writing":  {"clarity", "structure", "few_shot"},
		"analysis": {"chain_of_thought", "specificity", "structure"},
		"default":  {"clarity", "specificity"},
	})

	// -- Scoring --
	v.SetDefault("scoring.delegate_over_words", 1500)

	// -- Generation --
	v.SetDefault("generation.mode", "heuristic")
	v.SetDefault("generation.rate_per_sec", 0.0)
	v.SetDefault("generation.burst", 1)
	v.SetDefault("generation.llm.model", "gemini-2.5-flash")
	v.SetDefault("generation.llm.api_timeout", "60s")
	v.SetDefault("generation.llm.temperature", 0.4)
	v.SetDefault("generation.llm.max_tokens", 2048)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("generation.llm.api_key", "PROMPTSMITH_LLM_API_KEY")
	v.BindEnv("recorder.dsn", "PROMPTSMITH_RECORDER_DSN")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the key if Unmarshal didn't pick it up.
	if cfg.GenerationCfg.Mode == "llm" && cfg.GenerationCfg.LLM.APIKey == "" {
		cfg.GenerationCfg.LLM.APIKey = os.Getenv("PROMPTSMITH_LLM_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.OrchestratorCfg.Validate(); err != nil {
		return fmt.Errorf("orchestrator configuration invalid: %w", err)
	}
	if err := c.GenerationCfg.Validate(); err != nil {
		return fmt.Errorf("generation configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the orchestrator settings.
func (o *OrchestratorConfig) Validate() error {
	if o.ImprovementTrigger < 0 || o.ImprovementTrigger > 100 {
		return fmt.Errorf("improvement_trigger must be between 0 and 100")
	}
	if o.HighQuality < 0 || o.HighQuality > 100 {
		return fmt.Errorf("high_quality must be between 0 and 100")
	}
	if o.PatternExtractionMin <= 0 {
		return fmt.Errorf("pattern_extraction_min must be a positive integer")
	}
	if o.HistoryCapacity <= 0 {
		return fmt.Errorf("history_capacity must be a positive integer")
	}
	if o.MaxConcurrentAgents <= 0 {
		return fmt.Errorf("max_concurrent_agents must be a positive integer")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be a positive duration")
	}
	for flag, methods := range o.AgentSelection {
		for _, m := range methods {
			if _, err := schemas.ParseMethod(m); err != nil {
				return fmt.Errorf("agent_selection[%s]: %w", flag, err)
			}
		}
	}
	return nil
}

// Validate checks the generation settings.
func (g *GenerationConfig) Validate() error {
	switch g.Mode {
	case "heuristic":
	case "llm":
		if g.LLM.APIKey == "" {
			return fmt.Errorf("LLM API key is required but not found. Ensure PROMPTSMITH_LLM_API_KEY is set")
		}
	default:
		return fmt.Errorf("generation.mode must be %q or %q, got %q", "heuristic", "llm", g.Mode)
	}
	if g.RatePerSec < 0 {
		return fmt.Errorf("rate_per_sec must not be negative")
	}
	return nil
}
