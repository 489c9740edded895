package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/kamillle/rag-sample/internal/types"
)

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	Model     string
	BaseURL   string // Ollama server URL
	Dimension int    // expected vector length, 0 disables the check
}

// EmbeddingClient is the part of a langchaingo LLM used for embeddings.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, inputTexts []string) ([][]float32, error)
}

// Embedder turns text into vectors through an Ollama embedding model.
type Embedder struct {
	config EmbedderConfig
	client EmbeddingClient
}

var _ types.Embedder = (*Embedder)(nil)

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest" // Default Ollama model
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}

	emb, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return NewEmbedderWithClient(config, emb), nil
}

func NewEmbedderWithClient(config EmbedderConfig, client EmbeddingClient) *Embedder {
	return &Embedder{
		config: config,
		client: client,
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.client.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrEmbedding, err)
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", types.ErrEmbedding)
	}

	return checkDimension(embeddings[0], e.config.Dimension)
}

func (e *Embedder) Model() string {
	return "ollama/" + e.config.Model
}

// ErrDimensionMismatch means the model returned vectors of a different size
// than configured. Retrying does not help.
var ErrDimensionMismatch = errors.New("dimension mismatch")

func checkDimension(vec []float32, want int) ([]float32, error) {
	if want > 0 && len(vec) != want {
		return nil, fmt.Errorf("%w: %w: expected %d, got %d", types.ErrEmbedding, ErrDimensionMismatch, want, len(vec))
	}
	return vec, nil
}
