package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"trialrag/internal/domain"
	"trialrag/internal/port"
)

// DefaultBatchSize is the number of chunks embedded per call.
const DefaultBatchSize = 50

// IndexUseCase ingests the corpus and builds, persists and loads the vector
// index.
type IndexUseCase struct {
	loader    port.CorpusLoader
	chunker   port.Chunker
	embedder  port.Embedder
	backend   port.IndexBackend
	meta      domain.IndexMeta
	batchSize int
}

// NewIndexUseCase creates a new index use case. meta describes the index the
// embedder produces and is checked against any persisted index.
func NewIndexUseCase(
	loader port.CorpusLoader,
	chunker port.Chunker,
	embedder port.Embedder,
	backend port.IndexBackend,
	meta domain.IndexMeta,
	batchSize int,
) *IndexUseCase {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &IndexUseCase{
		loader:    loader,
		chunker:   chunker,
		embedder:  embedder,
		backend:   backend,
		meta:      meta,
		batchSize: batchSize,
	}
}

// IndexResult contains the results of an open-or-build operation.
type IndexResult struct {
	Path      string
	Loaded    bool // a persisted index was reused, nothing was embedded
	Stale     bool // a persisted index existed but was built with other settings
	Documents int
	Chunks    int
	Batches   int
	Duration  time.Duration
}

// ProgressFunc is called after each embedded batch with the number of chunks
// embedded so far.
type ProgressFunc func(done, total int)

// BuildOptions controls OpenOrBuild.
type BuildOptions struct {
	// Rebuild ignores any persisted index.
	Rebuild bool
	// Progress is optional.
	Progress ProgressFunc
}

// Ingest loads and chunks every document in dir. It returns the number of
// documents read alongside the chunks.
func (u *IndexUseCase) Ingest(dir string) ([]domain.Chunk, int, error) {
	docs, err := u.loader.Load(dir)
	if err != nil {
		return nil, 0, err
	}

	chunks, err := u.chunker.Chunk(docs)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to chunk corpus: %w", err)
	}

	log.Info().
		Str("dir", dir).
		Int("documents", len(docs)).
		Int("chunks", len(chunks)).
		Msg("Corpus ingested")

	return chunks, len(docs), nil
}

// Build embeds chunks in batches, in order, and appends each batch to a new
// index. Any batch failure aborts the build and nothing is returned.
func (u *IndexUseCase) Build(ctx context.Context, chunks []domain.Chunk, progress ProgressFunc) (port.VectorIndex, error) {
	if len(chunks) == 0 {
		return nil, domain.ErrEmptyCorpus
	}

	idx, err := u.backend.New(u.meta)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s index: %w", u.backend.Name(), err)
	}

	texts := make([]string, u.batchSize)
	for start := 0; start < len(chunks); start += u.batchSize {
		end := min(start+u.batchSize, len(chunks))
		batch := chunks[start:end]

		log.Info().Msgf("Embedding batch %d to %d", start, end)

		texts = texts[:0]
		for _, c := range batch {
			texts = append(texts, c.Content)
		}

		vectors, err := u.embedder.EmbedMany(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d to %d: %w", start, end, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedding batch %d to %d: got %d vectors for %d chunks",
				start, end, len(vectors), len(batch))
		}

		if err := idx.Add(batch, vectors); err != nil {
			return nil, fmt.Errorf("adding batch %d to %d: %w", start, end, err)
		}

		if progress != nil {
			progress(end, len(chunks))
		}
	}

	return idx, nil
}

// Open loads the persisted index at path.
func (u *IndexUseCase) Open(path string) (port.VectorIndex, error) {
	return u.backend.Load(path, u.meta)
}

// OpenOrBuild returns the index persisted at indexPath when it exists and
// matches the current settings. Otherwise it ingests corpusDir, builds a new
// index and persists it to indexPath. On return with a nil error the index at
// indexPath is loadable and equivalent to the returned one.
//
// A persisted index with a different dimension is an error, not a rebuild:
// it signals an embedding model swap the caller should resolve explicitly.
func (u *IndexUseCase) OpenOrBuild(ctx context.Context, corpusDir, indexPath string, opts BuildOptions) (port.VectorIndex, *IndexResult, error) {
	start := time.Now()
	result := &IndexResult{Path: indexPath}

	if !opts.Rebuild {
		if _, err := os.Stat(indexPath); err == nil {
			idx, err := u.Open(indexPath)
			switch {
			case err == nil:
				result.Loaded = true
				result.Chunks = idx.Len()
				result.Duration = time.Since(start)
				log.Info().
					Str("path", indexPath).
					Int("chunks", idx.Len()).
					Str("model", idx.Meta().Model).
					Msg("Loaded persisted index")
				return idx, result, nil
			case errors.Is(err, domain.ErrStaleIndex):
				result.Stale = true
				log.Warn().Err(err).Msg("Persisted index is stale, rebuilding")
			default:
				return nil, nil, err
			}
		}
	}

	chunks, docs, err := u.Ingest(corpusDir)
	if err != nil {
		return nil, nil, err
	}
	result.Documents = docs
	result.Chunks = len(chunks)

	idx, err := u.Build(ctx, chunks, opts.Progress)
	if err != nil {
		return nil, nil, err
	}
	result.Batches = (len(chunks) + u.batchSize - 1) / u.batchSize

	if err := idx.Persist(indexPath); err != nil {
		return nil, nil, fmt.Errorf("failed to persist index: %w", err)
	}

	result.Duration = time.Since(start)
	log.Info().
		Str("path", indexPath).
		Str("backend", u.backend.Name()).
		Int("chunks", idx.Len()).
		Int("dimension", u.meta.Dimension).
		Dur("duration", result.Duration).
		Msg("Index built and persisted")

	return idx, result, nil
}
