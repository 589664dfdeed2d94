// File: cmd/evaluate.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/promptsmith/api/schemas"
	"github.com/xkilldash9x/promptsmith/internal/analysis"
	"github.com/xkilldash9x/promptsmith/internal/observability"
	"github.com/xkilldash9x/promptsmith/internal/scoring"
)

// evaluation is the output shape of the evaluate command.
type evaluation struct {
	Context  *schemas.PromptContext      `json:"context"`
	Result   *schemas.EvaluationResult   `json:"result,omitempty"`
	Deferred *schemas.DeferredEvaluation `json:"deferred,omitempty"`
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [file]",
	Short: "Score a prompt without improving it.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readPromptArg(args)
		if err != nil {
			return err
		}

		logger := observability.GetLogger()
		classifier := analysis.NewClassifier(logger)
		scorer, err := scoring.NewScorer(appCfg.Scoring(), logger)
		if err != nil {
			return err
		}

		pc, err := classifier.Classify(cmd.Context(), text)
		if err != nil {
			return err
		}
		outcome, err := scorer.Evaluate(cmd.Context(), text)
		if err != nil {
			return err
		}

		return printJSON(evaluation{
			Context:  pc,
			Result:   outcome.Result,
			Deferred: outcome.Deferred,
		})
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
}
