package port

import "trialrag/internal/domain"

type Chunker interface {
	Chunk(docs []domain.Document) ([]domain.Chunk, error)
}
