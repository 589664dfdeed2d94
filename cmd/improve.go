// File: cmd/improve.go
package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/promptsmith/api/schemas"
	"github.com/xkilldash9x/promptsmith/internal/observability"
)

var improveJSON bool

var improveCmd = &cobra.Command{
	Use:   "improve [file]",
	Short: "Evaluate a prompt and improve it if it scores below the trigger.",
	Long: `Reads a prompt from the given file, or from stdin when the argument
is "-" or omitted, runs it through the improvement pipeline and prints the
result.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readPromptArg(args)
		if err != nil {
			return err
		}

		logger := observability.GetLogger()
		orch, cleanup, err := buildOrchestrator(cmd.Context(), appCfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		res := orch.Orchestrate(cmd.Context(), text)
		orch.WaitBackground()

		if improveJSON {
			return printJSON(res)
		}
		printImproveResult(res)
		if !res.Success {
			return fmt.Errorf("pipeline did not complete normally (run %s)", res.RunID)
		}
		return nil
	},
}

func init() {
	improveCmd.Flags().BoolVar(&improveJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(improveCmd)
}

func printImproveResult(res *schemas.OrchestrationResult) {
	switch {
	case res.Deferred != nil:
		fmt.Printf("Evaluation deferred: %s\n", res.Deferred.Reason)
	case res.Improved:
		fmt.Printf("Score: %.1f -> %.1f (method: %s)\n\n%s\n",
			res.OriginalScore, res.FinalScore, res.Phases.Improve.Winner, res.FinalText)
	default:
		fmt.Printf("Score: %.1f, no improvement applied\n", res.FinalScore)
	}
}

func printJSON(v interface{}) error {
	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
