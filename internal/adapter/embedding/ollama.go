package embedding

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"trialrag/internal/domain"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaEmbedder embeds text with a model served by a local Ollama daemon.
// The dimension is discovered by embedding a probe string at startup.
type OllamaEmbedder struct {
	embedder  embeddings.Embedder
	model     string
	dimension int
}

func NewOllamaEmbedder(ctx context.Context, model, baseURL string, batchSize int) (*OllamaEmbedder, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}

	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama model %s: %w", domain.ErrModelLoad, model, err)
	}

	emb, err := embeddings.NewEmbedder(llm, embeddings.WithBatchSize(batchSize))
	if err != nil {
		return nil, fmt.Errorf("%w: ollama embedder %s: %w", domain.ErrModelLoad, model, err)
	}

	return newProbedEmbedder(ctx, emb, model)
}

func newProbedEmbedder(ctx context.Context, emb embeddings.Embedder, model string) (*OllamaEmbedder, error) {
	probe, err := emb.EmbedQuery(ctx, "dimension probe")
	if err != nil {
		return nil, fmt.Errorf("%w: model %s did not answer: %w", domain.ErrModelLoad, model, err)
	}
	if len(probe) == 0 {
		return nil, fmt.Errorf("%w: model %s returned an empty embedding", domain.ErrModelLoad, model)
	}

	log.Debug().Str("model", model).Int("dimension", len(probe)).Msg("embedding model ready")

	return &OllamaEmbedder{
		embedder:  emb,
		model:     model,
		dimension: len(probe),
	}, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vec, nil
}

func (e *OllamaEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(vectors))
	}
	return vectors, nil
}

func (e *OllamaEmbedder) Dimension() int {
	return e.dimension
}

func (e *OllamaEmbedder) ModelName() string {
	return e.model
}
