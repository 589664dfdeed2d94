// File: cmd/serve.go
// Description: Line-delimited JSON command loop over stdio. Lets a parent
// process (an editor plugin or an agent) drive the pipeline without paying
// process startup per prompt.

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/promptsmith/api/schemas"
	"github.com/xkilldash9x/promptsmith/internal/analysis"
	"github.com/xkilldash9x/promptsmith/internal/observability"
	"github.com/xkilldash9x/promptsmith/internal/orchestrator"
	"github.com/xkilldash9x/promptsmith/internal/scoring"
)

// Maximum accepted request line. Prompts beyond this are rejected upstream.
const maxRequestBytes = 1 << 20

// CommandRequest is the incoming JSON envelope, one per line.
type CommandRequest struct {
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params"`
}

// CommandResponse is the outgoing JSON envelope, one per request.
type CommandResponse struct {
	Status string      `json:"status"` // "success" or "error"
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// server bundles the collaborators the serve loop dispatches to.
type server struct {
	orch       *orchestrator.Orchestrator
	classifier schemas.ContextClassifier
	scorer     schemas.CriteriaScorer
	logger     *zap.Logger
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve pipeline commands over stdio as line-delimited JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		orch, cleanup, err := buildOrchestrator(ctx, appCfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()
		defer orch.WaitBackground()

		scorer, err := scoring.NewScorer(appCfg.Scoring(), logger)
		if err != nil {
			return err
		}

		srv := &server{
			orch:       orch,
			classifier: analysis.NewClassifier(logger),
			scorer:     scorer,
			logger:     logger,
		}
		return srv.serveLoop(ctx, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// serveLoop reads one request per line from in and writes one response per
// request to out. It returns on EOF or when ctx is cancelled.
func (s *server) serveLoop(ctx context.Context, in io.Reader, out io.Writer) error {
	json := jsoniter.ConfigCompatibleWithStandardLibrary
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxRequestBytes)
	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req CommandRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			s.writeResponse(encoder, CommandResponse{Status: "error", Error: fmt.Sprintf("malformed request: %v", err)})
			continue
		}

		s.writeResponse(encoder, s.handleRequest(ctx, req))
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading requests: %w", err)
	}
	s.logger.Info("Serve loop finished")
	return nil
}

func (s *server) writeResponse(encoder *jsoniter.Encoder, resp CommandResponse) {
	if err := encoder.Encode(resp); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

// handleRequest dispatches one command. Errors become error responses; they
// never terminate the loop.
func (s *server) handleRequest(ctx context.Context, req CommandRequest) CommandResponse {
	switch req.Command {
	case "ping":
		return CommandResponse{Status: "success", Data: "pong"}

	case "improve_prompt":
		text, err := textParam(req.Params)
		if err != nil {
			return CommandResponse{Status: "error", Error: err.Error()}
		}
		res := s.orch.Orchestrate(ctx, text)
		if !res.Success {
			return CommandResponse{Status: "error", Data: res, Error: "pipeline did not complete normally"}
		}
		return CommandResponse{Status: "success", Data: res}

	case "evaluate_prompt":
		text, err := textParam(req.Params)
		if err != nil {
			return CommandResponse{Status: "error", Error: err.Error()}
		}
		pc, err := s.classifier.Classify(ctx, text)
		if err != nil {
			return CommandResponse{Status: "error", Error: err.Error()}
		}
		outcome, err := s.scorer.Evaluate(ctx, text)
		if err != nil {
			return CommandResponse{Status: "error", Error: err.Error()}
		}
		return CommandResponse{Status: "success", Data: evaluation{
			Context:  pc,
			Result:   outcome.Result,
			Deferred: outcome.Deferred,
		}}

	case "history":
		minScore := 0.0
		if raw, ok := req.Params["min_score"]; ok {
			v, ok := raw.(float64)
			if !ok {
				return CommandResponse{Status: "error", Error: "min_score must be a number"}
			}
			minScore = v
		}
		return CommandResponse{Status: "success", Data: s.orch.History().HighScoring(minScore)}

	default:
		return CommandResponse{Status: "error", Error: fmt.Sprintf("unknown command: %q", req.Command)}
	}
}

func textParam(params map[string]interface{}) (string, error) {
	raw, ok := params["text"]
	if !ok {
		return "", fmt.Errorf("missing 'text' parameter")
	}
	text, ok := raw.(string)
	if !ok || strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("invalid or empty 'text' parameter")
	}
	return text, nil
}
