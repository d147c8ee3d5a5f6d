package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/rs/zerolog/log"
	"trialrag/internal/adapter/analyzer"
	"trialrag/internal/domain"
	"trialrag/internal/port"
)

//go:embed templates/answer_prompt.txt
var answerPromptText string

var answerPrompt = template.Must(template.New("answer").Parse(answerPromptText))

var (
	errEmptyCompletion = errors.New("completion service returned empty content")
	errNoCompleter     = errors.New("no completion service configured")
)

// DefaultTemperature keeps decoding deterministic.
const DefaultTemperature = 0.0

// AnswerUseCase turns a query into a grounded answer: retrieve, build the
// prompt, call the completion service once.
type AnswerUseCase struct {
	retriever   port.Retriever
	completer   port.Completer
	model       string
	temperature float64
	tokenizer   *analyzer.Tokenizer
}

func NewAnswerUseCase(retriever port.Retriever, completer port.Completer, model string, temperature float64) *AnswerUseCase {
	return &AnswerUseCase{
		retriever:   retriever,
		completer:   completer,
		model:       model,
		temperature: temperature,
		tokenizer:   analyzer.NewTokenizer(),
	}
}

// FormatContext renders chunks as "[Source: <source>]\n<content>" segments
// separated by a blank line, in the given order.
func FormatContext(chunks []domain.Chunk) string {
	segments := make([]string, len(chunks))
	for i, c := range chunks {
		segments[i] = fmt.Sprintf("[Source: %s]\n%s", c.Source, c.Content)
	}
	return strings.Join(segments, "\n\n")
}

// BuildPrompt renders the answer prompt for query over chunks.
func BuildPrompt(query string, chunks []domain.Chunk) (string, error) {
	var buf bytes.Buffer
	err := answerPrompt.Execute(&buf, struct {
		Context string
		Query   string
	}{
		Context: FormatContext(chunks),
		Query:   query,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// Prompt retrieves context for query and returns the prompt that Answer
// would send, with the chunks it was built from.
func (u *AnswerUseCase) Prompt(ctx context.Context, query string) (string, []domain.Chunk, error) {
	chunks, err := u.retriever.Retrieve(ctx, query)
	if err != nil {
		return "", nil, err
	}

	prompt, err := BuildPrompt(query, chunks)
	if err != nil {
		return "", nil, err
	}
	return prompt, chunks, nil
}

// Answer returns the completion for the grounded prompt verbatim. Completion
// failures come back as *domain.SynthesisError; retrieval failures are
// returned unchanged.
func (u *AnswerUseCase) Answer(ctx context.Context, query string) (string, error) {
	prompt, chunks, err := u.Prompt(ctx, query)
	if err != nil {
		return "", err
	}

	if u.completer == nil {
		return "", &domain.SynthesisError{Query: query, Err: errNoCompleter}
	}

	log.Debug().
		Int("chunks", len(chunks)).
		Int("prompt_tokens", u.tokenizer.CountTokens(prompt)).
		Msg("Prompt built")

	completion, err := u.completer.Complete(ctx, domain.CompletionRequest{
		Prompt:      prompt,
		Temperature: u.temperature,
		Model:       u.model,
	})
	if err != nil {
		return "", &domain.SynthesisError{Query: query, Err: err}
	}
	if strings.TrimSpace(completion.Content) == "" {
		return "", &domain.SynthesisError{Query: query, Err: errEmptyCompletion}
	}

	return completion.Content, nil
}
