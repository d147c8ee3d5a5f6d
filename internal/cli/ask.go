package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"trialrag/internal/usecase"
)

var askText string

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question from the indexed trials",
	Long: `Retrieve the most relevant chunks and ask the configured language model to
answer from them only. The answer cites its sources as [Source: <file>].

Examples:
  trialrag ask -q "Which trial studies gemcitabine?"`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askText, "query", "q", "", "question to answer (required)")
	askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	p, _, err := openPipeline(cmd.Context(), usecase.BuildOptions{}, true)
	if err != nil {
		return err
	}

	answer, err := p.AnswerQuery(cmd.Context(), askText)
	if err != nil {
		return err
	}

	fmt.Printf("Answer:\n%s\n", answer)
	return nil
}
