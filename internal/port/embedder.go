package port

import (
	"context"

	"trialrag/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedMany generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text, in input order.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorIndex stores chunk vectors and searches them by cosine similarity.
type VectorIndex interface {
	// Add appends chunks and their vectors. Ids are assigned in call order.
	Add(chunks []domain.Chunk, vectors [][]float32) error

	// Search returns up to k chunks ordered by descending similarity.
	Search(vector []float32, k int) ([]domain.ScoredChunk, error)

	// Persist writes the index to path, replacing any previous content atomically.
	Persist(path string) error

	// Len returns the number of stored vectors.
	Len() int

	// Chunks returns the stored chunks in id order.
	Chunks() []domain.Chunk

	Meta() domain.IndexMeta
}

// IndexBackend creates and loads one kind of VectorIndex.
type IndexBackend interface {
	Name() string

	New(meta domain.IndexMeta) (VectorIndex, error)

	// Load reads the index at path. It fails with domain.ErrIndexLoad when the
	// file is missing, corrupt, or has a dimension other than want.Dimension,
	// and with domain.ErrStaleIndex when only the fingerprint differs.
	Load(path string, want domain.IndexMeta) (VectorIndex, error)
}
