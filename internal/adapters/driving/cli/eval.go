package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexis/internal/adapters/driven/evaluation"
	"github.com/custodia-labs/lexis/internal/core/domain"
)

var (
	evalOut   string
	evalQuiet bool
)

var evalCmd = &cobra.Command{
	Use:   "eval [dataset]",
	Short: "Evaluate answers against reference answers",
	Long: `Asks every question of the dataset, scores each answer against its
reference answer by word overlap and writes one record per question.

Datasets are JSON arrays of {"question", "answer"} objects, JSON Lines,
YAML, or CSV files with a question,answer header. The report is CSV
(question,ground_truth,answer,score) unless --out ends in .jsonl.`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVarP(&evalOut, "out", "o", "results.csv", "report file")
	evalCmd.Flags().BoolVarP(&evalQuiet, "quiet", "q", false, "only print the overall score")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	r, err := currentRuntime()
	if err != nil {
		return err
	}

	dataset, err := evaluation.NewDataset(args[0])
	if err != nil {
		return err
	}
	cases, err := dataset.Cases(cmd.Context())
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		return fmt.Errorf("%w: dataset %s has no questions", domain.ErrInvalidInput, args[0])
	}

	sink, err := evaluation.CreateSink(evalOut)
	if err != nil {
		return err
	}
	defer sink.Close()

	svc, err := r.Evaluation(cmd.Context(), sink)
	if err != nil {
		return err
	}

	cmd.Printf("Evaluating %d questions...\n", len(cases))
	report, err := svc.Evaluate(cmd.Context(), cases)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if !evalQuiet {
		for i, rec := range report.Records {
			status := ""
			if rec.Failed {
				status = color.RedString(" (failed)")
			}
			cmd.Printf("  [%d] %s %s%s\n", i+1, scoreColor(rec.Score)("%.2f", rec.Score), rec.Question, status)
		}
		cmd.Println()
	}

	cmd.Printf("Overall score: %s\n", scoreColor(report.Overall)("%.2f%%", report.Overall*100))
	cmd.Printf("Results saved to %s\n", evalOut)
	return nil
}

func scoreColor(score float64) func(format string, a ...any) string {
	switch {
	case score >= 0.7:
		return color.GreenString
	case score >= 0.4:
		return color.YellowString
	default:
		return color.RedString
	}
}
