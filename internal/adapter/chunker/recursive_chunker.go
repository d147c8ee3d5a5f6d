package chunker

import (
	"fmt"
	"slices"
	"strings"

	"trialrag/internal/domain"
)

// Separators in priority order: paragraph, line, sentence, clause, word.
// When none fits, the chunk is cut at an arbitrary character.
var defaultSeparators = []string{"\n\n", "\n", ". ", "? ", "! ", "; ", ", ", " "}

// RecursiveChunker splits documents into windows of at most chunkSize
// characters (runes). Consecutive chunks of a document share exactly
// overlap characters: the next chunk starts overlap characters before the
// end of the previous one.
type RecursiveChunker struct {
	chunkSize  int
	overlap    int
	separators [][]rune
}

func NewRecursiveChunker(chunkSize, overlap int) (*RecursiveChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk_size must be positive, got %d", domain.ErrConfig, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk_overlap must satisfy 0 <= overlap < chunk_size, got %d (chunk_size %d)",
			domain.ErrConfig, overlap, chunkSize)
	}

	seps := make([][]rune, len(defaultSeparators))
	for i, s := range defaultSeparators {
		seps[i] = []rune(s)
	}

	return &RecursiveChunker{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: seps,
	}, nil
}

// Chunk splits every document, keeping document order.
func (c *RecursiveChunker) Chunk(docs []domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, doc := range docs {
		chunks = append(chunks, c.ChunkDocument(doc)...)
	}
	return chunks, nil
}

// ChunkDocument splits one document. Blank documents produce no chunks.
func (c *RecursiveChunker) ChunkDocument(doc domain.Document) []domain.Chunk {
	if strings.TrimSpace(doc.Content) == "" {
		return nil
	}

	text := []rune(doc.Content)
	var chunks []domain.Chunk
	start := 0

	for {
		end := len(text)
		if end-start > c.chunkSize {
			end = c.splitPoint(text, start)
		}

		chunks = append(chunks, domain.Chunk{
			Source:        doc.Source,
			SequenceIndex: len(chunks),
			Offset:        start,
			Content:       string(text[start:end]),
		})

		if end == len(text) {
			break
		}
		start = end - c.overlap
	}

	return chunks
}

// splitPoint picks the end of the chunk that starts at start. The result is
// in (start+overlap, start+chunkSize], so every step makes progress and the
// overlap always lies inside the previous chunk.
func (c *RecursiveChunker) splitPoint(text []rune, start int) int {
	limit := start + c.chunkSize
	floor := start + c.overlap

	// First look for a boundary in the upper half of the window so chunks
	// stay close to chunkSize, then accept anything past the overlap.
	lowers := []int{max(floor, start+c.chunkSize/2), floor}
	for _, lower := range lowers {
		for _, sep := range c.separators {
			if end, ok := lastBoundary(text, start, lower, limit, sep); ok {
				return end
			}
		}
	}

	return limit
}

// lastBoundary finds the largest end in (lower, limit] such that the
// separator ends exactly at end and starts at or after start.
func lastBoundary(text []rune, start, lower, limit int, sep []rune) (int, bool) {
	for end := limit; end > lower; end-- {
		begin := end - len(sep)
		if begin < start {
			break
		}
		if slices.Equal(text[begin:end], sep) {
			return end, true
		}
	}
	return 0, false
}
