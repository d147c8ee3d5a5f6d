package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"trialrag/internal/adapter/retriever"
	"trialrag/internal/usecase"
)

var (
	searchText string
	searchTopK int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Show the chunks retrieved for a question",
	Long: `Retrieve the chunks most similar to a question without calling the language
model. Builds the index first if none exists.

Examples:
  trialrag search -q "gemcitabine pancreatic cancer"
  trialrag search -q "ECOG eligibility" --top-k 10 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")
}

// SearchResult is one retrieved chunk as printed by the search command.
type SearchResult struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Seq     int     `json:"seq"`
	Offset  int     `json:"offset"`
	Score   float64 `json:"score"`
	Content string  `json:"content"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, _, err := openPipeline(ctx, usecase.BuildOptions{}, false)
	if err != nil {
		return err
	}

	topK := GetConfig().Retrieve.TopK
	if searchTopK > 0 {
		topK = searchTopK
	}

	r := retriever.NewSemanticRetriever(p.Embedder(), p.Index(), topK)
	scored, err := r.Search(ctx, searchText, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	results := make([]SearchResult, len(scored))
	for i, sc := range scored {
		results[i] = SearchResult{
			ID:      sc.Chunk.ID(),
			Source:  sc.Chunk.Source,
			Seq:     sc.Chunk.SequenceIndex,
			Offset:  sc.Chunk.Offset,
			Score:   sc.Score,
			Content: sc.Chunk.Content,
		}
	}

	if searchJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), searchText)
	for i, r := range results {
		fmt.Printf("--- [%d] %s chunk %d (score: %.3f) ---\n", i+1, r.Source, r.Seq, r.Score)
		fmt.Println(preview(r.Content, 500))
		fmt.Println()
	}
	return nil
}

// preview truncates text to at most n runes.
func preview(text string, n int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) > n {
		return string(runes[:n]) + "..."
	}
	return string(runes)
}
