package embedding

import (
	"context"
	"fmt"

	"trialrag/config"
	"trialrag/internal/domain"
	"trialrag/internal/port"
)

// New creates the embedding provider selected in cfg. Failures wrap
// domain.ErrModelLoad and are fatal at startup.
func New(ctx context.Context, cfg config.EmbeddingConfig, batchSize int) (port.Embedder, error) {
	switch cfg.Provider {
	case "hash", "":
		emb, err := NewHashingEmbedder(cfg.Model, cfg.Dimension)
		if err != nil {
			return nil, err
		}
		return emb, nil
	case "ollama":
		emb, err := NewOllamaEmbedder(ctx, cfg.Model, cfg.BaseURL, batchSize)
		if err != nil {
			return nil, err
		}
		return emb, nil
	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s", domain.ErrModelLoad, cfg.Provider)
	}
}
