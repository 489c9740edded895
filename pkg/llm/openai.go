package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kamillle/rag-sample/internal/types"
)

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Dimension   int
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func newOpenAIClient(config OpenAIConfig) *openai.Client {
	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// OpenAIEmbedder uses the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	config OpenAIConfig
}

var _ types.Embedder = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(config OpenAIConfig) (*OpenAIEmbedder, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai embedder selected but no API key set")
	}
	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}

	return &OpenAIEmbedder{
		client: newOpenAIClient(config),
		config: config,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.config.Model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create openai embeddings: %w", types.ErrEmbedding, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding data returned from API", types.ErrEmbedding)
	}

	return checkDimension(resp.Data[0].Embedding, e.config.Dimension)
}

func (e *OpenAIEmbedder) Model() string {
	return "openai/" + e.config.Model
}

// OpenAICompleter uses the OpenAI chat completions API.
type OpenAICompleter struct {
	client *openai.Client
	config OpenAIConfig
}

var _ types.Completer = (*OpenAICompleter)(nil)

func NewOpenAICompleter(config OpenAIConfig) (*OpenAICompleter, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai llm selected but no API key set")
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}

	return &OpenAICompleter{
		client: newOpenAIClient(config),
		config: config,
	}, nil
}

func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Temperature: float32(c.config.Temperature),
		MaxTokens:   c.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: create openai chat completion: %v", types.ErrUpstreamGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai chat completion returned no choices", types.ErrUpstreamGeneration)
	}

	return resp.Choices[0].Message.Content, nil
}

// isClientError reports whether err is an OpenAI 4xx response other than
// rate limiting.
func isClientError(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests
}
