package cli

import (
	"context"
	"fmt"

	"trialrag/config"
	"trialrag/internal/adapter/chunker"
	"trialrag/internal/adapter/embedding"
	"trialrag/internal/adapter/fs"
	"trialrag/internal/adapter/llm"
	"trialrag/internal/adapter/store"
	"trialrag/internal/port"
	"trialrag/internal/usecase"
)

// openPipeline builds the RAG pipeline from the loaded configuration,
// loading the persisted index or building it first. The completion client is
// only created when withCompleter is set, so retrieval-only commands work
// without an API key.
func openPipeline(ctx context.Context, opts usecase.BuildOptions, withCompleter bool) (*usecase.Pipeline, *usecase.IndexResult, error) {
	cfg := GetConfig()
	root := GetRootDir()

	emb, err := embedding.New(ctx, cfg.Embedding, cfg.Index.BatchSize)
	if err != nil {
		return nil, nil, err
	}

	chk, err := chunker.NewRecursiveChunker(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	if err != nil {
		return nil, nil, err
	}

	backend, err := store.NewBackend(cfg.Index.Backend)
	if err != nil {
		return nil, nil, err
	}

	indexer := usecase.NewIndexUseCase(
		fs.NewCorpusLoader(cfg.Corpus.Pattern),
		chk,
		emb,
		backend,
		store.MetaFor(cfg, emb),
		cfg.Index.BatchSize,
	)

	var completer port.Completer
	if withCompleter {
		c, err := llm.New(cfg.LLM)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create completion client: %w", err)
		}
		completer = c
	}

	builder := usecase.PipelineBuilder{
		Indexer:     indexer,
		Embedder:    emb,
		Completer:   completer,
		TopK:        cfg.Retrieve.TopK,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	}

	return builder.Build(ctx,
		config.ResolvePath(root, cfg.Corpus.Dir),
		config.ResolvePath(root, cfg.Index.Path),
		opts,
	)
}
