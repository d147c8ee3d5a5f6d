package retriever

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"trialrag/internal/domain"
	"trialrag/internal/port"
)

// DefaultK is the number of chunks returned per query.
const DefaultK = 5

// SemanticRetriever embeds the query with the same model used to build the
// index and returns the k most similar chunks.
type SemanticRetriever struct {
	embedder port.Embedder
	index    port.VectorIndex
	k        int
}

func NewSemanticRetriever(embedder port.Embedder, index port.VectorIndex, k int) *SemanticRetriever {
	if k <= 0 {
		k = DefaultK
	}
	return &SemanticRetriever{
		embedder: embedder,
		index:    index,
		k:        k,
	}
}

// K returns the fixed result count.
func (r *SemanticRetriever) K() int {
	return r.k
}

// Retrieve returns up to k chunks, most similar first.
func (r *SemanticRetriever) Retrieve(ctx context.Context, query string) ([]domain.Chunk, error) {
	scored, err := r.Search(ctx, query, r.k)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, len(scored))
	for i, sc := range scored {
		chunks[i] = sc.Chunk
	}
	return chunks, nil
}

// Search is Retrieve with scores and an explicit k. A failure here means the
// index and the embedding model disagree, so every error wraps
// domain.ErrIndexLoad.
func (r *SemanticRetriever) Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed query: %w", domain.ErrIndexLoad, err)
	}

	results, err := r.index.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	log.Debug().
		Str("query", query).
		Int("k", k).
		Int("results", len(results)).
		Msg("Retrieved chunks")

	return results, nil
}
