package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"trialrag/internal/domain"
)

type fakeCompleter struct {
	reply string
	err   error

	calls   int
	request domain.CompletionRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	f.calls++
	f.request = req
	if f.err != nil {
		return domain.Completion{}, f.err
	}
	return domain.Completion{Content: f.reply}, nil
}

type staticRetriever struct {
	chunks []domain.Chunk
	err    error
}

func (r staticRetriever) Retrieve(ctx context.Context, query string) ([]domain.Chunk, error) {
	return r.chunks, r.err
}

func TestBuildPrompt(t *testing.T) {
	chunks := []domain.Chunk{
		{Source: "doc1.txt", Content: "Trial NCT001 studies gemcitabine in pancreatic cancer."},
		{Source: "doc2.txt", Content: "Trial NCT002 studies FOLFIRINOX."},
	}

	prompt, err := BuildPrompt("Which trial studies gemcitabine?", chunks)
	if err != nil {
		t.Fatal(err)
	}

	wantContext := "Context:\n[Source: doc1.txt]\nTrial NCT001 studies gemcitabine in pancreatic cancer.\n\n[Source: doc2.txt]\nTrial NCT002 studies FOLFIRINOX.\n\n"
	if !strings.Contains(prompt, wantContext) {
		t.Errorf("prompt missing context block:\n%s", prompt)
	}
	if !strings.HasPrefix(prompt, "Use the context below to answer the question as accurately as possible.") {
		t.Errorf("unexpected prompt preamble:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Answer only from the given context.") {
		t.Error("prompt should restrict the answer to the context")
	}
	if !strings.HasSuffix(prompt, "Question: Which trial studies gemcitabine?\n\nAnswer:") {
		t.Errorf("unexpected prompt ending:\n%s", prompt)
	}
}

func TestBuildPrompt_DoesNotEscape(t *testing.T) {
	prompt, err := BuildPrompt("Is CA19-9 < 37 U/mL & stable?", []domain.Chunk{{Source: "a&b.txt", Content: "<normal>"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prompt, "Is CA19-9 < 37 U/mL & stable?") || !strings.Contains(prompt, "[Source: a&b.txt]\n<normal>") {
		t.Errorf("prompt text was altered:\n%s", prompt)
	}
}

func TestFormatContext_Empty(t *testing.T) {
	if got := FormatContext(nil); got != "" {
		t.Errorf("expected empty context, got %q", got)
	}
}

func TestAnswerUseCase_ReturnsCompletionVerbatim(t *testing.T) {
	completer := &fakeCompleter{reply: "  NCT001 [Source: doc1.txt]\n"}
	uc := NewAnswerUseCase(staticRetriever{chunks: []domain.Chunk{{Source: "doc1.txt", Content: "x"}}}, completer, "gpt-4.1-mini", DefaultTemperature)

	answer, err := uc.Answer(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "  NCT001 [Source: doc1.txt]\n" {
		t.Errorf("answer altered: %q", answer)
	}
	if completer.calls != 1 {
		t.Errorf("expected exactly one completion call, got %d", completer.calls)
	}
	if completer.request.Temperature != 0 || completer.request.Model != "gpt-4.1-mini" {
		t.Errorf("unexpected request options %+v", completer.request)
	}
}

func TestAnswerUseCase_SynthesisFailure(t *testing.T) {
	cause := errors.New("429 quota exceeded")
	uc := NewAnswerUseCase(staticRetriever{}, &fakeCompleter{err: cause}, "m", 0)

	answer, err := uc.Answer(context.Background(), "Which trial studies gemcitabine?")
	if answer != "" {
		t.Errorf("expected no answer, got %q", answer)
	}

	var synthErr *domain.SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected *SynthesisError, got %T: %v", err, err)
	}
	if synthErr.Query != "Which trial studies gemcitabine?" {
		t.Errorf("unexpected query %q", synthErr.Query)
	}
	if !errors.Is(err, cause) || !errors.Is(err, domain.ErrSynthesis) {
		t.Errorf("expected error to match cause and ErrSynthesis: %v", err)
	}
}

func TestAnswerUseCase_EmptyCompletion(t *testing.T) {
	uc := NewAnswerUseCase(staticRetriever{}, &fakeCompleter{reply: " \n"}, "m", 0)

	if _, err := uc.Answer(context.Background(), "q"); !errors.Is(err, domain.ErrSynthesis) {
		t.Errorf("expected ErrSynthesis for empty completion, got %v", err)
	}
}

func TestAnswerUseCase_NoCompleter(t *testing.T) {
	uc := NewAnswerUseCase(staticRetriever{}, nil, "m", 0)

	if _, err := uc.Answer(context.Background(), "q"); !errors.Is(err, domain.ErrSynthesis) {
		t.Errorf("expected ErrSynthesis without a completer, got %v", err)
	}
}

func TestAnswerUseCase_RetrievalFailureIsNotSynthesis(t *testing.T) {
	completer := &fakeCompleter{reply: "unused"}
	uc := NewAnswerUseCase(staticRetriever{err: domain.ErrIndexLoad}, completer, "m", 0)

	_, err := uc.Answer(context.Background(), "q")
	if !errors.Is(err, domain.ErrIndexLoad) || errors.Is(err, domain.ErrSynthesis) {
		t.Errorf("expected bare ErrIndexLoad, got %v", err)
	}
	if completer.calls != 0 {
		t.Error("completion service should not be called when retrieval fails")
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	ctx := context.Background()
	emb := newCountingEmbedder(t, 384)
	completer := &fakeCompleter{reply: "Trial NCT001 [Source: doc1.txt] studies gemcitabine."}

	builder := PipelineBuilder{
		Indexer:     newIndexer(t, emb, "fp", 50),
		Embedder:    emb,
		Completer:   completer,
		TopK:        5,
		Model:       "gpt-4.1-mini",
		Temperature: DefaultTemperature,
	}
	p, res, err := builder.Build(ctx, trialCorpus(t), filepath.Join(t.TempDir(), "index.db"), BuildOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Index().Len() != 2 || res.Chunks != 2 {
		t.Fatalf("expected one chunk per document, got %d", p.Index().Len())
	}

	query := "Which trial studies gemcitabine?"
	chunks, err := p.Retrieve(ctx, query)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 || chunks[0].Source != "doc1.txt" {
		t.Fatalf("expected doc1.txt as top chunk, got %+v", chunks)
	}

	answer, err := p.AnswerQuery(ctx, query)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(answer, "gemcitabine") {
		t.Errorf("answer should mention gemcitabine: %q", answer)
	}

	sent := completer.request.Prompt
	first := strings.Index(sent, "[Source: doc1.txt]\nTrial NCT001 studies gemcitabine in pancreatic cancer.")
	second := strings.Index(sent, "[Source: doc2.txt]")
	if first < 0 || second < 0 || first > second {
		t.Errorf("prompt should cite doc1.txt before doc2.txt:\n%s", sent)
	}

	prompt, err := p.Prompt(ctx, query)
	if err != nil {
		t.Fatal(err)
	}
	if prompt != sent {
		t.Error("Prompt should match what AnswerQuery sends")
	}
}

func TestPipeline_SynthesisFailureDoesNotPoisonPipeline(t *testing.T) {
	ctx := context.Background()
	emb := newCountingEmbedder(t, 384)
	completer := &fakeCompleter{err: errors.New("connection reset")}

	p, _, err := PipelineBuilder{
		Indexer:   newIndexer(t, emb, "fp", 50),
		Embedder:  emb,
		Completer: completer,
		TopK:      1,
	}.Build(ctx, trialCorpus(t), filepath.Join(t.TempDir(), "index.db"), BuildOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.AnswerQuery(ctx, "gemcitabine"); !errors.Is(err, domain.ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}

	completer.err = nil
	completer.reply = "ok"
	if answer, err := p.AnswerQuery(ctx, "gemcitabine"); err != nil || answer != "ok" {
		t.Errorf("pipeline should keep serving after a failed query: %q, %v", answer, err)
	}
}
