package retriever

import (
	"context"
	"errors"
	"testing"

	"trialrag/internal/adapter/embedding"
	"trialrag/internal/adapter/store"
	"trialrag/internal/domain"
)

func newTestRetriever(t *testing.T, k int) *SemanticRetriever {
	t.Helper()
	ctx := context.Background()

	emb, err := embedding.NewHashingEmbedder("", 384)
	if err != nil {
		t.Fatal(err)
	}

	chunks := []domain.Chunk{
		{Source: "doc1.txt", Content: "Trial NCT001 studies gemcitabine in pancreatic cancer."},
		{Source: "doc2.txt", Content: "Trial NCT002 studies FOLFIRINOX."},
		{Source: "doc3.txt", Content: "Eligibility requires ECOG performance status 0 or 1."},
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := emb.EmbedMany(ctx, texts)
	if err != nil {
		t.Fatal(err)
	}

	idx := store.NewBoltIndex(domain.IndexMeta{Dimension: emb.Dimension(), Model: emb.ModelName()})
	if err := idx.Add(chunks, vectors); err != nil {
		t.Fatal(err)
	}
	return NewSemanticRetriever(emb, idx, k)
}

func TestSemanticRetriever_TopResult(t *testing.T) {
	r := newTestRetriever(t, 2)

	chunks, err := r.Retrieve(context.Background(), "Which trial studies gemcitabine?")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Source != "doc1.txt" {
		t.Errorf("expected doc1.txt first, got %s", chunks[0].Source)
	}
}

func TestSemanticRetriever_ScoresDescending(t *testing.T) {
	r := newTestRetriever(t, 3)

	results, err := r.Search(context.Background(), "FOLFIRINOX trial", 3)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Chunk.Source != "doc2.txt" {
		t.Errorf("expected doc2.txt first, got %s", results[0].Chunk.Source)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("scores not sorted at %d: %f > %f", i, results[i].Score, results[i-1].Score)
		}
	}
}

func TestSemanticRetriever_DefaultK(t *testing.T) {
	r := newTestRetriever(t, 0)
	if r.K() != DefaultK {
		t.Errorf("expected default k %d, got %d", DefaultK, r.K())
	}

	chunks, err := r.Retrieve(context.Background(), "trial")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Errorf("expected all 3 chunks when k exceeds index size, got %d", len(chunks))
	}
}

func TestSemanticRetriever_ModelDrift(t *testing.T) {
	emb, _ := embedding.NewHashingEmbedder("", 64)
	idx := store.NewBoltIndex(domain.IndexMeta{Dimension: 384})
	r := NewSemanticRetriever(emb, idx, 5)

	if _, err := r.Retrieve(context.Background(), "gemcitabine"); !errors.Is(err, domain.ErrIndexLoad) {
		t.Errorf("expected ErrIndexLoad, got %v", err)
	}
}
