package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
	"trialrag/internal/domain"
)

// Config holds all configuration for the clinical-trial RAG tool.
type Config struct {
	Corpus    CorpusConfig    `yaml:"corpus"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	LLM       LLMConfig       `yaml:"llm"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CorpusConfig selects the text files to ingest.
type CorpusConfig struct {
	Dir     string `yaml:"dir"`
	Pattern string `yaml:"pattern"` // doublestar glob relative to Dir
}

// IndexConfig holds chunking and index persistence configuration.
type IndexConfig struct {
	Path         string `yaml:"path"`
	Backend      string `yaml:"backend"` // "bolt", "chromem"
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	BatchSize    int    `yaml:"batch_size"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "hash", "ollama"
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"` // used by the hash provider only
	BaseURL   string `yaml:"base_url"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK int `yaml:"top_k"`
}

// LLMConfig configures the completion service.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "openai", "ollama"
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	BaseURL     string  `yaml:"base_url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Dir:     "rag_texts",
			Pattern: "*.txt",
		},
		Index: IndexConfig{
			Path:         filepath.Join("rag_index", "index.db"),
			Backend:      "bolt",
			ChunkSize:    1000,
			ChunkOverlap: 200,
			BatchSize:    50,
		},
		Embedding: EmbeddingConfig{
			Provider:  "hash",
			Dimension: 384,
		},
		Retrieve: RetrieveConfig{
			TopK: 5,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4.1-mini",
			Temperature: 0,
			APIKeyEnv:   "OPENAI_API_KEY",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrConfig, path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for trialrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "trialrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".rag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", domain.ErrConfig, c.Index.ChunkSize)
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must satisfy 0 <= overlap < chunk_size, got %d (chunk_size %d)",
			domain.ErrConfig, c.Index.ChunkOverlap, c.Index.ChunkSize)
	}
	if c.Index.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", domain.ErrConfig, c.Index.BatchSize)
	}
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrConfig, c.Retrieve.TopK)
	}
	switch c.Index.Backend {
	case "bolt", "chromem":
	default:
		return fmt.Errorf("%w: unsupported index backend %q", domain.ErrConfig, c.Index.Backend)
	}
	switch c.Embedding.Provider {
	case "hash":
		if c.Embedding.Dimension <= 0 {
			return fmt.Errorf("%w: embedding dimension must be positive", domain.ErrConfig)
		}
	case "ollama":
		if c.Embedding.Model == "" {
			return fmt.Errorf("%w: embedding model is required for provider ollama", domain.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported embedding provider %q", domain.ErrConfig, c.Embedding.Provider)
	}
	switch c.LLM.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("%w: unsupported llm provider %q", domain.ErrConfig, c.LLM.Provider)
	}
	return nil
}

// ResolvePath makes a configured relative path relative to root.
func ResolvePath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
