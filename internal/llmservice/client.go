package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"studyrag/internal/config"
	"studyrag/internal/models"
)

// Model is a provider client able to both generate text and embed it
type Model interface {
	llms.Model
	embeddings.EmbedderClient
}

// NewModel builds the provider client described by cfg
func NewModel(cfg *config.LLMConfig) (Model, error) {
	log.Debug().Str("provider", cfg.Provider).Str("base_url", cfg.BaseURL).Str("model", cfg.Model).Msg("Creating LLM client")

	switch cfg.Provider {
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		return ollama.New(opts...)
	case "openai":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
			openai.WithEmbeddingModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// Client sends single prompts to the inference model
type Client struct {
	llm         llms.Model
	model       string
	temperature float64
	maxTokens   int
}

func NewClient(cfg *config.LLMConfig) (*Client, error) {
	llm, err := NewModel(cfg)
	if err != nil {
		return nil, err
	}
	return NewClientWithModel(llm, cfg), nil
}

func NewClientWithModel(llm llms.Model, cfg *config.LLMConfig) *Client {
	return &Client{
		llm:         llm,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Generate returns the model's answer to prompt with surrounding whitespace trimmed.
// Provider failures are wrapped in models.ErrGeneration.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	opts := []llms.CallOption{llms.WithTemperature(c.temperature)}
	if c.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.maxTokens))
	}

	log.Debug().Str("model", c.model).Int("prompt_len", len(prompt)).Msg("Generating content")
	answer, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrGeneration, err)
	}
	return strings.TrimSpace(answer), nil
}
