package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"trialrag/internal/domain"
	"trialrag/internal/port"
)

const chromemCollection = "trial_chunks"

// Chunk fields and index metadata are kept in per-document metadata so an
// exported collection is self-describing.
const (
	metaSource      = "source"
	metaSeq         = "seq"
	metaOffset      = "offset"
	metaModel       = "model"
	metaFingerprint = "fingerprint"
)

var errNoEmbeddingFunc = errors.New("chromem index only accepts precomputed embeddings")

// rejectEmbedding stands in for the collection embedding function. Vectors
// always come from the configured embedder.
func rejectEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

// ChromemIndex stores vectors in an in-memory chromem-go collection and
// persists it with chromem's gob export. Document ids are insertion
// positions.
type ChromemIndex struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	meta       domain.IndexMeta
	chunks     []domain.Chunk
}

func NewChromemIndex(meta domain.IndexMeta) (*ChromemIndex, error) {
	db := chromem.NewDB()
	c, err := db.CreateCollection(chromemCollection, nil, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &ChromemIndex{db: db, collection: c, meta: meta}, nil
}

func (s *ChromemIndex) Add(chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) != s.meta.Dimension {
			return fmt.Errorf("vector dimension mismatch for %s: expected %d, got %d",
				chunk.ID(), s.meta.Dimension, len(vectors[i]))
		}
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(len(s.chunks) + i),
			Content:   chunk.Content,
			Embedding: vectors[i],
			Metadata: map[string]string{
				metaSource:      chunk.Source,
				metaSeq:         strconv.Itoa(chunk.SequenceIndex),
				metaOffset:      strconv.Itoa(chunk.Offset),
				metaModel:       s.meta.Model,
				metaFingerprint: s.meta.Fingerprint,
			},
		}
	}

	// Concurrency 1 keeps chromem from embedding anything in parallel; all
	// embeddings are already present.
	if err := s.collection.AddDocuments(context.Background(), docs, 1); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *ChromemIndex) Search(query []float32, k int) ([]domain.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.meta.Dimension {
		return nil, fmt.Errorf("%w: query dimension mismatch: expected %d, got %d",
			domain.ErrIndexLoad, s.meta.Dimension, len(query))
	}

	total := s.collection.Count()
	n := min(k, total)
	if n <= 0 {
		return nil, nil
	}

	// A zero query has no direction; chromem would normalise it to NaN.
	if isZeroVector(query) {
		out := make([]domain.ScoredChunk, n)
		for i := range out {
			out[i] = domain.ScoredChunk{Chunk: s.chunks[i]}
		}
		return out, nil
	}

	// chromem scores documents concurrently and keeps an arbitrary subset of
	// equal scores at the cutoff, so rank the whole collection and cut here.
	results, err := s.collection.QueryWithOptions(context.Background(), chromem.QueryOptions{
		QueryEmbedding: query,
		NResults:       total,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query by similarity: %w", domain.ErrIndexLoad, err)
	}

	type ranked struct {
		id    int
		score float64
	}
	ranking := make([]ranked, 0, len(results))
	for _, r := range results {
		id, err := strconv.Atoi(r.ID)
		if err != nil || id < 0 || id >= len(s.chunks) {
			return nil, fmt.Errorf("%w: unknown document id %q", domain.ErrIndexLoad, r.ID)
		}
		ranking = append(ranking, ranked{id: id, score: float64(r.Similarity)})
	}

	sort.SliceStable(ranking, func(a, b int) bool {
		if ranking[a].score != ranking[b].score {
			return ranking[a].score > ranking[b].score
		}
		return ranking[a].id < ranking[b].id
	})

	out := make([]domain.ScoredChunk, min(n, len(ranking)))
	for i := range out {
		out[i] = domain.ScoredChunk{Chunk: s.chunks[ranking[i].id], Score: ranking[i].score}
	}
	return out, nil
}

func (s *ChromemIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *ChromemIndex) Chunks() []domain.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Chunk(nil), s.chunks...)
}

func (s *ChromemIndex) Meta() domain.IndexMeta {
	return s.meta
}

// Persist exports the collection to a temporary file and renames it into
// place.
func (s *ChromemIndex) Persist(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return writeAtomic(path, func(tmpPath string) error {
		log.Debug().Str("path", tmpPath).Int("documents", len(s.chunks)).Msg("Exporting chromem collection")
		if err := s.db.ExportToFile(tmpPath, false, "", chromemCollection); err != nil {
			return fmt.Errorf("failed to export database: %w", err)
		}
		return nil
	})
}

// LoadChromemIndex imports a collection written by Persist and rebuilds the
// id to chunk table from document metadata.
func LoadChromemIndex(path string, want domain.IndexMeta) (*ChromemIndex, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexLoad, err)
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(path, "", chromemCollection); err != nil {
		return nil, fmt.Errorf("%w: import %s: %w", domain.ErrIndexLoad, path, err)
	}

	c := db.GetCollection(chromemCollection, rejectEmbedding)
	if c == nil {
		return nil, fmt.Errorf("%w: %s: collection %q not found", domain.ErrIndexLoad, path, chromemCollection)
	}

	ctx := context.Background()
	count := c.Count()
	chunks := make([]domain.Chunk, count)
	var meta domain.IndexMeta

	for i := 0; i < count; i++ {
		doc, err := c.GetByID(ctx, strconv.Itoa(i))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: missing document %d: %w", domain.ErrIndexLoad, path, i, err)
		}
		if len(doc.Embedding) != want.Dimension {
			return nil, fmt.Errorf("%w: %s: dimension mismatch: index has %d, embedding model produces %d (model %s)",
				domain.ErrIndexLoad, path, len(doc.Embedding), want.Dimension, want.Model)
		}

		seq, err1 := strconv.Atoi(doc.Metadata[metaSeq])
		offset, err2 := strconv.Atoi(doc.Metadata[metaOffset])
		if err := errors.Join(err1, err2); err != nil {
			return nil, fmt.Errorf("%w: %s: corrupt metadata for document %d: %w", domain.ErrIndexLoad, path, i, err)
		}
		chunks[i] = domain.Chunk{
			Source:        doc.Metadata[metaSource],
			SequenceIndex: seq,
			Offset:        offset,
			Content:       doc.Content,
		}

		if i == 0 {
			meta = domain.IndexMeta{
				Dimension:   len(doc.Embedding),
				Model:       doc.Metadata[metaModel],
				Fingerprint: doc.Metadata[metaFingerprint],
			}
		}
	}

	if count == 0 {
		meta = domain.IndexMeta{Dimension: want.Dimension, Model: want.Model}
	}

	if want.Fingerprint != "" && meta.Fingerprint != want.Fingerprint {
		return nil, fmt.Errorf("%w: %s has fingerprint %s, want %s",
			domain.ErrStaleIndex, path, meta.Fingerprint, want.Fingerprint)
	}

	return &ChromemIndex{db: db, collection: c, meta: meta, chunks: chunks}, nil
}

// ChromemBackend persists indexes as chromem-go collection exports.
type ChromemBackend struct{}

func (ChromemBackend) Name() string {
	return "chromem"
}

func (ChromemBackend) New(meta domain.IndexMeta) (port.VectorIndex, error) {
	idx, err := NewChromemIndex(meta)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func (ChromemBackend) Load(path string, want domain.IndexMeta) (port.VectorIndex, error) {
	idx, err := LoadChromemIndex(path, want)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// NewBackend returns the index backend registered under name.
func NewBackend(name string) (port.IndexBackend, error) {
	switch name {
	case "", "bolt":
		return BoltBackend{}, nil
	case "chromem":
		return ChromemBackend{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown index backend %q", domain.ErrConfig, name)
	}
}
