package domain

import "fmt"

// Document is one corpus file. Source is the file's base name and is used
// for citation only.
type Document struct {
	Source  string
	Content string
}

// Chunk is a bounded slice of a Document. Offset is the rune offset of the
// first character of Content inside the parent document.
type Chunk struct {
	Source        string `json:"source"`
	SequenceIndex int    `json:"seq"`
	Offset        int    `json:"offset"`
	Content       string `json:"content"`
}

// ID returns a stable identifier for the chunk.
func (c Chunk) ID() string {
	return fmt.Sprintf("%s#%d", c.Source, c.SequenceIndex)
}

type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// IndexMeta identifies the embedding space an index was built in.
type IndexMeta struct {
	Dimension   int    `json:"dimension"`
	Model       string `json:"model"`
	Fingerprint string `json:"fingerprint"`
}

// Completion is a successful response from the completion service.
type Completion struct {
	Content string
}

// CompletionRequest is one call to the completion service.
type CompletionRequest struct {
	Prompt      string
	Temperature float64
	Model       string
}
