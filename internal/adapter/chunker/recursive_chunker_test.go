package chunker

import (
	"errors"
	"strings"
	"testing"

	"trialrag/internal/domain"
)

func longDocument() string {
	paragraphs := []string{
		"The phase III trial randomised patients with metastatic pancreatic adenocarcinoma to gemcitabine alone or gemcitabine plus nab-paclitaxel. Overall survival was the primary endpoint.",
		"Eligibility required an ECOG performance status of 0 or 1, adequate bone marrow function and no prior chemotherapy for metastatic disease. Patients with biliary stents were allowed.",
		"FOLFIRINOX, a combination of oxaliplatin, irinotecan, leucovorin and fluorouracil, improved median survival compared with gemcitabine in a separate study, at the cost of more grade 3 neutropenia.",
		"Secondary endpoints included progression-free survival, objective response rate and quality of life measured with the EORTC QLQ-C30 questionnaire at baseline and every eight weeks.",
	}
	var sb strings.Builder
	for i := 0; i < 4; i++ {
		for _, p := range paragraphs {
			sb.WriteString(p)
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}

func reconstruct(chunks []domain.Chunk, overlap int) string {
	var sb strings.Builder
	for i, c := range chunks {
		runes := []rune(c.Content)
		if i > 0 {
			runes = runes[overlap:]
		}
		sb.WriteString(string(runes))
	}
	return sb.String()
}

func TestRecursiveChunker_Coverage(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"defaults", 1000, 200},
		{"small windows", 120, 30},
		{"no overlap", 300, 0},
		{"large overlap", 100, 99},
	}

	content := longDocument()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewRecursiveChunker(tt.size, tt.overlap)
			if err != nil {
				t.Fatal(err)
			}
			chunks := c.ChunkDocument(domain.Document{Source: "trial.txt", Content: content})
			if len(chunks) < 2 {
				t.Fatalf("expected several chunks, got %d", len(chunks))
			}
			if got := reconstruct(chunks, tt.overlap); got != content {
				t.Errorf("de-overlapped chunks do not reconstruct the document")
			}
		})
	}
}

func TestRecursiveChunker_OverlapAndSize(t *testing.T) {
	const size, overlap = 250, 50
	c, err := NewRecursiveChunker(size, overlap)
	if err != nil {
		t.Fatal(err)
	}

	chunks := c.ChunkDocument(domain.Document{Source: "trial.txt", Content: longDocument()})
	for i, chunk := range chunks {
		if n := len([]rune(chunk.Content)); n > size {
			t.Errorf("chunk %d has %d runes, exceeds %d", i, n, size)
		}
		if i == 0 {
			continue
		}
		prev := []rune(chunks[i-1].Content)
		cur := []rune(chunk.Content)
		suffix := string(prev[len(prev)-overlap:])
		prefix := string(cur[:overlap])
		if suffix != prefix {
			t.Errorf("chunks %d/%d do not share %d characters: %q vs %q", i-1, i, overlap, suffix, prefix)
		}
		if chunk.Offset != chunks[i-1].Offset+len(prev)-overlap {
			t.Errorf("chunk %d offset %d does not follow previous chunk", i, chunk.Offset)
		}
	}
}

func TestRecursiveChunker_PrefersParagraphBoundary(t *testing.T) {
	first := strings.Repeat("a", 600)
	second := strings.Repeat("b", 600)
	content := first + "\n\n" + second

	c, err := NewRecursiveChunker(1000, 200)
	if err != nil {
		t.Fatal(err)
	}
	chunks := c.ChunkDocument(domain.Document{Source: "p.txt", Content: content})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Content, "\n\n") {
		t.Errorf("expected first chunk to end at the paragraph break, got suffix %q",
			chunks[0].Content[len(chunks[0].Content)-5:])
	}
}

func TestRecursiveChunker_FallsBackToWordBoundary(t *testing.T) {
	content := strings.Repeat("word ", 100)

	c, err := NewRecursiveChunker(42, 5)
	if err != nil {
		t.Fatal(err)
	}
	chunks := c.ChunkDocument(domain.Document{Source: "w.txt", Content: content})
	for _, chunk := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(chunk.Content, " ") {
			t.Errorf("expected chunk to end at a space, got %q", chunk.Content)
		}
	}
}

func TestRecursiveChunker_HardCutWithoutSeparators(t *testing.T) {
	content := strings.Repeat("x", 95)

	c, err := NewRecursiveChunker(40, 10)
	if err != nil {
		t.Fatal(err)
	}
	chunks := c.ChunkDocument(domain.Document{Source: "x.txt", Content: content})
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0].Content) != 40 || len(chunks[1].Content) != 40 {
		t.Errorf("expected full-size chunks, got %d and %d", len(chunks[0].Content), len(chunks[1].Content))
	}
	if got := reconstruct(chunks, 10); got != content {
		t.Error("hard-cut chunks do not reconstruct the document")
	}
}

func TestRecursiveChunker_ShortDocument(t *testing.T) {
	c, err := NewRecursiveChunker(1000, 200)
	if err != nil {
		t.Fatal(err)
	}

	content := "Trial NCT001 studies gemcitabine in pancreatic cancer."
	chunks := c.ChunkDocument(domain.Document{Source: "doc1.txt", Content: content})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != content {
		t.Errorf("expected chunk text to match content")
	}
	if chunks[0].SequenceIndex != 0 || chunks[0].Offset != 0 {
		t.Errorf("expected first chunk at seq 0 offset 0, got %d/%d", chunks[0].SequenceIndex, chunks[0].Offset)
	}
}

func TestRecursiveChunker_BlankDocument(t *testing.T) {
	c, err := NewRecursiveChunker(100, 10)
	if err != nil {
		t.Fatal(err)
	}
	if chunks := c.ChunkDocument(domain.Document{Source: "blank.txt", Content: " \n\t "}); len(chunks) != 0 {
		t.Errorf("expected no chunks for blank document, got %d", len(chunks))
	}
}

func TestRecursiveChunker_MetadataAndSequence(t *testing.T) {
	c, err := NewRecursiveChunker(200, 40)
	if err != nil {
		t.Fatal(err)
	}

	docs := []domain.Document{
		{Source: "a.txt", Content: longDocument()},
		{Source: "b.txt", Content: "short"},
		{Source: "c.txt", Content: longDocument()},
	}
	chunks, err := c.Chunk(docs)
	if err != nil {
		t.Fatal(err)
	}

	next := map[string]int{}
	order := []string{}
	for _, chunk := range chunks {
		if _, seen := next[chunk.Source]; !seen {
			order = append(order, chunk.Source)
		}
		if chunk.SequenceIndex != next[chunk.Source] {
			t.Fatalf("chunk of %s has seq %d, want %d", chunk.Source, chunk.SequenceIndex, next[chunk.Source])
		}
		next[chunk.Source]++
	}

	if strings.Join(order, ",") != "a.txt,b.txt,c.txt" {
		t.Errorf("chunks not grouped in document order: %v", order)
	}
	if next["b.txt"] != 1 {
		t.Errorf("expected 1 chunk for b.txt, got %d", next["b.txt"])
	}
}

func TestRecursiveChunker_CountsRunes(t *testing.T) {
	content := strings.Repeat("é", 30)

	c, err := NewRecursiveChunker(10, 2)
	if err != nil {
		t.Fatal(err)
	}
	chunks := c.ChunkDocument(domain.Document{Source: "u.txt", Content: content})
	for _, chunk := range chunks {
		if n := len([]rune(chunk.Content)); n > 10 {
			t.Errorf("chunk has %d runes, exceeds 10", n)
		}
	}
	if got := reconstruct(chunks, 2); got != content {
		t.Error("unicode chunks do not reconstruct the document")
	}
}

func TestNewRecursiveChunker_InvalidParams(t *testing.T) {
	tests := []struct {
		size, overlap int
	}{
		{100, 100},
		{100, 150},
		{100, -1},
		{0, 0},
	}
	for _, tt := range tests {
		if _, err := NewRecursiveChunker(tt.size, tt.overlap); !errors.Is(err, domain.ErrConfig) {
			t.Errorf("NewRecursiveChunker(%d, %d): expected ErrConfig, got %v", tt.size, tt.overlap, err)
		}
	}
}
