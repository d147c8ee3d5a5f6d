package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"trialrag/internal/domain"
	"trialrag/internal/port"
)

var (
	bucketMeta    = []byte("meta")
	bucketVectors = []byte("vectors")
	keyIndexMeta  = []byte("index_meta")
)

// BoltIndex keeps every vector in memory and searches by brute-force cosine
// similarity. Ids are positions in insertion order. The index is persisted
// as a BoltDB file with one record per id.
type BoltIndex struct {
	mu      sync.RWMutex
	meta    domain.IndexMeta
	entries []vectorEntry
}

type vectorEntry struct {
	vector []float32
	chunk  domain.Chunk
}

type storedVector struct {
	Vector []float32    `json:"v"`
	Chunk  domain.Chunk `json:"c"`
}

type storedMeta struct {
	SchemaVersion int `json:"schema_version"`
	domain.IndexMeta
	Count int `json:"count"`
}

// NewBoltIndex creates an empty index for vectors of meta.Dimension.
func NewBoltIndex(meta domain.IndexMeta) *BoltIndex {
	return &BoltIndex{meta: meta}
}

// Add appends chunks with their vectors.
func (s *BoltIndex) Add(chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}
	for i, vec := range vectors {
		if len(vec) != s.meta.Dimension {
			return fmt.Errorf("vector dimension mismatch for %s: expected %d, got %d",
				chunks[i].ID(), s.meta.Dimension, len(vec))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range chunks {
		s.entries = append(s.entries, vectorEntry{
			vector: vectors[i],
			chunk:  chunks[i],
		})
	}
	return nil
}

// Search finds the k nearest vectors to the query using cosine similarity.
// Equal scores keep insertion order.
func (s *BoltIndex) Search(query []float32, k int) ([]domain.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.meta.Dimension {
		return nil, fmt.Errorf("%w: query dimension mismatch: expected %d, got %d",
			domain.ErrIndexLoad, s.meta.Dimension, len(query))
	}

	if k <= 0 || len(s.entries) == 0 {
		return nil, nil
	}

	scores := make([]domain.ScoredChunk, len(s.entries))
	for i, entry := range s.entries {
		scores[i] = domain.ScoredChunk{
			Chunk: entry.chunk,
			Score: cosineSimilarity(query, entry.vector),
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

func (s *BoltIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *BoltIndex) Chunks() []domain.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := make([]domain.Chunk, len(s.entries))
	for i, entry := range s.entries {
		chunks[i] = entry.chunk
	}
	return chunks
}

func (s *BoltIndex) Meta() domain.IndexMeta {
	return s.meta
}

// Persist writes the index to a temporary BoltDB file next to path and
// renames it into place.
func (s *BoltIndex) Persist(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return writeAtomic(path, func(tmpPath string) error {
		db, err := bbolt.Open(tmpPath, 0600, &bbolt.Options{Timeout: time.Second})
		if err != nil {
			return fmt.Errorf("failed to open bolt db: %w", err)
		}

		err = db.Update(func(tx *bbolt.Tx) error {
			mb, err := tx.CreateBucketIfNotExists(bucketMeta)
			if err != nil {
				return fmt.Errorf("failed to create meta bucket: %w", err)
			}
			vb, err := tx.CreateBucketIfNotExists(bucketVectors)
			if err != nil {
				return fmt.Errorf("failed to create vectors bucket: %w", err)
			}
			// Keys are appended in ascending order.
			vb.FillPercent = 1.0

			for i, entry := range s.entries {
				data, err := json.Marshal(storedVector{Vector: entry.vector, Chunk: entry.chunk})
				if err != nil {
					return err
				}
				if err := vb.Put(itob(uint64(i)), data); err != nil {
					return err
				}
			}

			meta, err := json.Marshal(storedMeta{
				SchemaVersion: CurrentSchemaVersion,
				IndexMeta:     s.meta,
				Count:         len(s.entries),
			})
			if err != nil {
				return err
			}
			return mb.Put(keyIndexMeta, meta)
		})
		if closeErr := db.Close(); err == nil {
			err = closeErr
		}
		return err
	})
}

// LoadBoltIndex reads an index written by Persist. Every failure wraps
// domain.ErrIndexLoad except a fingerprint mismatch, which wraps
// domain.ErrStaleIndex.
func LoadBoltIndex(path string, want domain.IndexMeta) (*BoltIndex, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexLoad, err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrIndexLoad, path, err)
	}
	defer db.Close()

	idx := &BoltIndex{}
	err = db.View(func(tx *bbolt.Tx) error {
		mb := tx.Bucket(bucketMeta)
		if mb == nil {
			return errors.New("meta bucket not found")
		}
		raw := mb.Get(keyIndexMeta)
		if raw == nil {
			return errors.New("index metadata not found")
		}

		var meta storedMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return fmt.Errorf("corrupt index metadata: %w", err)
		}
		if meta.SchemaVersion != CurrentSchemaVersion {
			return fmt.Errorf("unsupported schema version v%d (want v%d)", meta.SchemaVersion, CurrentSchemaVersion)
		}
		if meta.Dimension != want.Dimension {
			return fmt.Errorf("dimension mismatch: index has %d (model %s), embedding model produces %d (model %s)",
				meta.Dimension, meta.Model, want.Dimension, want.Model)
		}

		vb := tx.Bucket(bucketVectors)
		if vb == nil {
			return errors.New("vectors bucket not found")
		}

		entries := make([]vectorEntry, 0, meta.Count)
		c := vb.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(k) != 8 || binary.BigEndian.Uint64(k) != uint64(len(entries)) {
				return fmt.Errorf("non-contiguous vector id at position %d", len(entries))
			}
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("corrupt vector record %d: %w", len(entries), err)
			}
			if len(stored.Vector) != meta.Dimension {
				return fmt.Errorf("vector record %d has dimension %d, want %d", len(entries), len(stored.Vector), meta.Dimension)
			}
			entries = append(entries, vectorEntry{vector: stored.Vector, chunk: stored.Chunk})
		}

		if len(entries) != meta.Count {
			return fmt.Errorf("truncated index: metadata records %d vectors, found %d", meta.Count, len(entries))
		}

		idx.meta = meta.IndexMeta
		idx.entries = entries
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrIndexLoad, path, err)
	}

	if want.Fingerprint != "" && idx.meta.Fingerprint != want.Fingerprint {
		return nil, fmt.Errorf("%w: %s has fingerprint %s, want %s",
			domain.ErrStaleIndex, path, idx.meta.Fingerprint, want.Fingerprint)
	}

	return idx, nil
}

// BoltBackend is the default index backend.
type BoltBackend struct{}

func (BoltBackend) Name() string {
	return "bolt"
}

func (BoltBackend) New(meta domain.IndexMeta) (port.VectorIndex, error) {
	return NewBoltIndex(meta), nil
}

func (BoltBackend) Load(path string, want domain.IndexMeta) (port.VectorIndex, error) {
	idx, err := LoadBoltIndex(path, want)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
