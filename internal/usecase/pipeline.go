package usecase

import (
	"context"

	"trialrag/internal/adapter/retriever"
	"trialrag/internal/domain"
	"trialrag/internal/port"
)

// Pipeline owns everything needed to answer queries against one built index.
// It is constructed once and passed to whatever issues queries. Once built it
// only reads, so concurrent AnswerQuery calls are safe.
type Pipeline struct {
	embedder  port.Embedder
	index     port.VectorIndex
	retriever port.Retriever
	answerer  *AnswerUseCase
}

// NewPipeline wires a retriever and completer around an opened index.
func NewPipeline(embedder port.Embedder, index port.VectorIndex, retriever port.Retriever, answerer *AnswerUseCase) *Pipeline {
	return &Pipeline{
		embedder:  embedder,
		index:     index,
		retriever: retriever,
		answerer:  answerer,
	}
}

// AnswerQuery is the single query entry point for front ends.
func (p *Pipeline) AnswerQuery(ctx context.Context, query string) (string, error) {
	return p.answerer.Answer(ctx, query)
}

// Retrieve returns the chunks AnswerQuery would ground its answer on.
func (p *Pipeline) Retrieve(ctx context.Context, query string) ([]domain.Chunk, error) {
	return p.retriever.Retrieve(ctx, query)
}

// Prompt returns the prompt AnswerQuery would send without calling the
// completion service.
func (p *Pipeline) Prompt(ctx context.Context, query string) (string, error) {
	prompt, _, err := p.answerer.Prompt(ctx, query)
	return prompt, err
}

func (p *Pipeline) Index() port.VectorIndex {
	return p.index
}

func (p *Pipeline) Embedder() port.Embedder {
	return p.embedder
}

// PipelineBuilder opens or builds the index and assembles a Pipeline around
// it. Completer may be nil for retrieval-only use; AnswerQuery then fails
// with a SynthesisError.
type PipelineBuilder struct {
	Indexer     *IndexUseCase
	Embedder    port.Embedder
	Completer   port.Completer
	TopK        int
	Model       string
	Temperature float64
}

// Build runs IndexUseCase.OpenOrBuild and wires the result.
func (b PipelineBuilder) Build(ctx context.Context, corpusDir, indexPath string, opts BuildOptions) (*Pipeline, *IndexResult, error) {
	idx, result, err := b.Indexer.OpenOrBuild(ctx, corpusDir, indexPath, opts)
	if err != nil {
		return nil, nil, err
	}

	r := retriever.NewSemanticRetriever(b.Embedder, idx, b.TopK)
	answerer := NewAnswerUseCase(r, b.Completer, b.Model, b.Temperature)
	return NewPipeline(b.Embedder, idx, r, answerer), result, nil
}
