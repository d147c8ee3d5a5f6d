package port

import (
	"context"

	"trialrag/internal/domain"
)

// Retriever defines the interface for searching indexed content.
type Retriever interface {
	// Retrieve returns the top-k chunks for the query, most similar first.
	Retrieve(ctx context.Context, query string) ([]domain.Chunk, error)
}
