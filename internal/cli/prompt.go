package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"trialrag/internal/usecase"
)

var promptQuery string

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the grounded prompt for a question",
	Long: `Retrieve context for a question and print the exact prompt that 'ask' would
send to the language model, for use with an external model or for debugging
retrieval.

Examples:
  trialrag prompt -q "Which trial studies gemcitabine?" > prompt.txt`,
	RunE: runPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().StringVarP(&promptQuery, "query", "q", "", "question to build the prompt for (required)")
	promptCmd.MarkFlagRequired("query")
}

func runPrompt(cmd *cobra.Command, args []string) error {
	p, _, err := openPipeline(cmd.Context(), usecase.BuildOptions{}, false)
	if err != nil {
		return err
	}

	prompt, err := p.Prompt(cmd.Context(), promptQuery)
	if err != nil {
		return err
	}

	fmt.Println(prompt)
	return nil
}
