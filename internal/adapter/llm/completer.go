package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"trialrag/config"
	"trialrag/internal/domain"
)

var errNoChoices = errors.New("completion service returned no choices")

// Completer sends single-turn prompts to a langchaingo model.
type Completer struct {
	model     llms.Model
	modelName string
}

// NewCompleter wraps an already constructed model. modelName is used when a
// request does not name one.
func NewCompleter(model llms.Model, modelName string) *Completer {
	return &Completer{model: model, modelName: modelName}
}

// New builds a Completer for the configured provider. The OpenAI key is
// read from the environment variable named by cfg.APIKeyEnv.
func New(cfg config.LLMConfig) (*Completer, error) {
	switch cfg.Provider {
	case "", "openai":
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		keyEnv := cfg.APIKeyEnv
		if keyEnv == "" {
			keyEnv = "OPENAI_API_KEY"
		}
		token := os.Getenv(keyEnv)
		if token == "" {
			return nil, fmt.Errorf("%w: %s is not set", domain.ErrConfig, keyEnv)
		}
		opts = append(opts, openai.WithToken(token))
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: openai client: %w", domain.ErrConfig, err)
		}
		return NewCompleter(model, cfg.Model), nil

	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: ollama client: %w", domain.ErrConfig, err)
		}
		return NewCompleter(model, cfg.Model), nil

	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", domain.ErrConfig, cfg.Provider)
	}
}

// Complete sends the prompt as one human message. It does not retry.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = c.modelName
	}

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if modelName != "" {
		opts = append(opts, llms.WithModel(modelName))
	}

	log.Debug().
		Str("model", modelName).
		Float64("temperature", req.Temperature).
		Int("prompt_chars", len(req.Prompt)).
		Msg("Generating content")

	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt),
	}
	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return domain.Completion{}, fmt.Errorf("completion request failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return domain.Completion{}, errNoChoices
	}

	return domain.Completion{Content: resp.Choices[0].Content}, nil
}
