package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kamillle/rag-sample/internal/types"
	"github.com/kamillle/rag-sample/pkg/config"
)

// NewEmbedder builds the configured embedder, wrapped with retries.
func NewEmbedder(cfg *config.Config, logger *zap.Logger) (types.Embedder, error) {
	var (
		embedder types.Embedder
		err      error
	)

	switch cfg.Embedder.Provider {
	case config.ProviderOllama:
		embedder, err = NewEmbedderWithConfig(EmbedderConfig{
			Model:     cfg.Embedder.Model,
			BaseURL:   cfg.Embedder.BaseURL,
			Dimension: cfg.Embedder.Dimension,
		})
	case config.ProviderOpenAI:
		embedder, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:    cfg.Embedder.APIKey,
			BaseURL:   cfg.Embedder.BaseURL,
			Model:     cfg.Embedder.Model,
			Dimension: cfg.Embedder.Dimension,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedder.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewRetryingEmbedder(embedder, cfg.Embedder.MaxRetries, 0, logger), nil
}

// NewCompleter builds the configured language model client.
func NewCompleter(cfg *config.Config) (types.Completer, error) {
	var (
		completer types.Completer
		err       error
	)

	switch cfg.LLM.Provider {
	case config.ProviderOllama:
		completer, err = NewWithConfig(ChatConfig{
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			BaseURL:     cfg.LLM.BaseURL,
			Timeout:     cfg.LLM.Timeout,
		})
	case config.ProviderOpenAI:
		completer, err = NewOpenAICompleter(OpenAIConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}
	if err != nil {
		return nil, err
	}

	return completer, nil
}
