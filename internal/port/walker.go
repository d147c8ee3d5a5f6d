package port

import "trialrag/internal/domain"

// CorpusLoader reads every matching text file under a directory.
type CorpusLoader interface {
	Load(dir string) ([]domain.Document, error)
}
