package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"trialrag/config"
	"trialrag/internal/adapter/embedding"
	"trialrag/internal/adapter/retriever"
	"trialrag/internal/adapter/store"
)

func main() {
	rootDir := flag.String("dir", ".", "Directory holding trialrag.yaml and the index")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir . -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Index metadata (model, dimension, fingerprint, size)")
		fmt.Println("  2. Query embedding and search latency")
		fmt.Println("  3. Similarity of the top-k chunks to the query")
		os.Exit(1)
	}

	ctx := context.Background()

	cfg, err := config.LoadFromDir(*rootDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	embedder, err := embedding.New(ctx, cfg.Embedding, cfg.Index.BatchSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding model not available: %v\n", err)
		os.Exit(1)
	}

	backend, err := store.NewBackend(cfg.Index.Backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	indexPath := config.ResolvePath(*rootDir, cfg.Index.Path)
	loadStart := time.Now()
	idx, err := backend.Load(indexPath, store.MetaFor(cfg, embedder))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\nRun 'trialrag index' first.\n", err)
		os.Exit(1)
	}
	loadTime := time.Since(loadStart)

	meta := idx.Meta()
	fmt.Println("SEMANTIC SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Index:       %s (%s)\n", indexPath, backend.Name())
	fmt.Printf("Chunks:      %d\n", idx.Len())
	fmt.Printf("Model:       %s (%s)\n", meta.Model, cfg.Embedding.Provider)
	fmt.Printf("Dimension:   %d\n", meta.Dimension)
	fmt.Printf("Fingerprint: %s\n", meta.Fingerprint)
	fmt.Printf("Load time:   %s\n", loadTime.Round(time.Microsecond))
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	r := retriever.NewSemanticRetriever(embedder, idx, *topK)
	searchStart := time.Now()
	results, err := r.Search(ctx, *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	searchTime := time.Since(searchStart)

	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}

	fmt.Printf("Top %d semantic matches (%s):\n\n", len(results), searchTime.Round(time.Microsecond))

	totalScore := 0.0
	sources := make(map[string]bool)
	for i, res := range results {
		preview := []rune(strings.ReplaceAll(res.Chunk.Content, "\n", " "))
		if len(preview) > 150 {
			preview = append(preview[:150], []rune("...")...)
		}

		similarity := res.Score
		totalScore += similarity
		sources[res.Chunk.Source] = true

		rating := "LOW"
		if similarity > 0.7 {
			rating = "HIGH"
		} else if similarity > 0.5 {
			rating = "GOOD"
		} else if similarity > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s\n", i+1, rating, similarity, res.Chunk.ID())
		fmt.Printf("   %s\n\n", string(preview))
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Score)
	fmt.Printf("  Distinct sources:   %d\n", len(sources))

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - retrieval is well grounded")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - consider a stronger embedding model or smaller chunks")
	}
}
