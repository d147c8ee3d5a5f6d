package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"

	"trialrag/internal/adapter/analyzer"
	"trialrag/internal/domain"
)

// HashingEmbedder is an in-process embedding model. Terms and adjacent term
// pairs are feature-hashed into a fixed number of signed buckets, weighted by
// sublinear term frequency and L2-normalised. Output depends only on the
// text and the dimension, so an index built with it is reproducible.
type HashingEmbedder struct {
	model      string
	dimension  int
	tokenizer  *analyzer.Tokenizer
	pairWeight float64
}

func NewHashingEmbedder(model string, dimension int) (*HashingEmbedder, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: hashing dimension must be positive, got %d", domain.ErrModelLoad, dimension)
	}
	if model == "" {
		model = fmt.Sprintf("hashing-%d-v1", dimension)
	}
	return &HashingEmbedder{
		model:      model,
		dimension:  dimension,
		tokenizer:  analyzer.NewTokenizer(),
		pairWeight: 0.5,
	}, nil
}

func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := e.tokenizer.Tokenize(text)
	weights := make(map[string]float64, len(tokens)*2)
	for i, tok := range tokens {
		weights[tok] += 1
		if i > 0 {
			weights[tokens[i-1]+" "+tok] += e.pairWeight
		}
	}

	// Sorted so float accumulation order never changes between runs.
	features := make([]string, 0, len(weights))
	for f := range weights {
		features = append(features, f)
	}
	sort.Strings(features)

	acc := make([]float64, e.dimension)
	for _, f := range features {
		h := fnv.New64a()
		h.Write([]byte(f))
		sum := h.Sum64()

		w := 1 + math.Log(weights[f])
		if sum>>63 == 1 {
			w = -w
		}
		acc[sum%uint64(e.dimension)] += w
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, e.dimension)
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec, nil
}

func (e *HashingEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *HashingEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashingEmbedder) ModelName() string {
	return e.model
}
