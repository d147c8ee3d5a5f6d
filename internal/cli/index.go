package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"trialrag/internal/usecase"
)

var indexRebuild bool

var indexCmd = &cobra.Command{
	Use:   "index [corpus-dir]",
	Short: "Build or load the vector index",
	Long: `Ingest the corpus (all *.txt files by default), chunk it, embed the chunks in
batches and persist the vector index. When an index built with the same
settings already exists it is loaded instead and nothing is re-embedded.

Examples:
  trialrag index                # Index ./rag_texts into ./rag_index/index.db
  trialrag index ./trials       # Index a different corpus directory
  trialrag index --rebuild      # Ignore the persisted index and rebuild it`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "rebuild even if a persisted index exists")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if len(args) > 0 {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		cfg.Corpus.Dir = path
	}

	// Started before the first batch is embedded, not on its callback.
	startTime := time.Now()

	// Created on the first batch, once the total is known.
	var bar *progressbar.ProgressBar
	var barMu sync.Mutex

	progressCallback := func(done, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			)
		}

		bar.Set(done)

		if eta, ok := estimateRemaining(done, total, time.Since(startTime)); ok {
			bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
		}
	}

	p, result, err := openPipeline(cmd.Context(), usecase.BuildOptions{
		Rebuild:  indexRebuild,
		Progress: progressCallback,
	}, false)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	meta := p.Index().Meta()
	if result.Loaded {
		fmt.Printf("Index up to date, nothing to embed.\n")
	} else {
		fmt.Printf("\nIndexing complete:\n")
		if result.Stale {
			fmt.Printf("  Rebuilt:        settings changed since last build\n")
		}
		fmt.Printf("  Documents:      %d\n", result.Documents)
		fmt.Printf("  Batches:        %d\n", result.Batches)
	}
	fmt.Printf("  Chunks:         %d\n", p.Index().Len())
	fmt.Printf("  Model:          %s (%d dimensions)\n", meta.Model, meta.Dimension)
	fmt.Printf("  Fingerprint:    %s\n", meta.Fingerprint)
	fmt.Printf("  Took:           %s\n", formatDuration(result.Duration))
	fmt.Printf("\nIndex stored at: %s\n", result.Path)
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

// estimateRemaining extrapolates the time left from the chunks embedded in
// elapsed.
func estimateRemaining(done, total int, elapsed time.Duration) (time.Duration, bool) {
	if done <= 0 || elapsed <= 0 {
		return 0, false
	}
	rate := float64(done) / elapsed.Seconds()
	return time.Duration(float64(total-done) / rate * float64(time.Second)), true
}
