package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"trialrag/config"
	"trialrag/internal/domain"
	"trialrag/internal/port"
)

// CurrentSchemaVersion is the on-disk format version of persisted indexes.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

// ComputeFingerprint hashes the configuration that determines index
// contents. A persisted index whose fingerprint differs was built from
// different chunking or a different embedding model and must be rebuilt.
func ComputeFingerprint(cfg *config.Config, modelName string, dimension int) string {
	relevant := struct {
		ChunkSize    int    `json:"chunk_size"`
		ChunkOverlap int    `json:"chunk_overlap"`
		Provider     string `json:"embedding_provider"`
		Model        string `json:"embedding_model"`
		Dimension    int    `json:"dimension"`
	}{
		ChunkSize:    cfg.Index.ChunkSize,
		ChunkOverlap: cfg.Index.ChunkOverlap,
		Provider:     cfg.Embedding.Provider,
		Model:        modelName,
		Dimension:    dimension,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// MetaFor describes the index the given embedder would build under cfg.
func MetaFor(cfg *config.Config, embedder port.Embedder) domain.IndexMeta {
	return domain.IndexMeta{
		Dimension:   embedder.Dimension(),
		Model:       embedder.ModelName(),
		Fingerprint: ComputeFingerprint(cfg, embedder.ModelName(), embedder.Dimension()),
	}
}
