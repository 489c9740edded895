package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/kamillle/rag-sample/internal/types"
	"github.com/kamillle/rag-sample/pkg/config"
	"github.com/kamillle/rag-sample/pkg/llm"
)

type fakeEmbeddingClient struct {
	vectors [][]float32
	err     error
	inputs  []string
}

func (f *fakeEmbeddingClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.inputs = append(f.inputs, texts...)
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}

func TestEmbedder(t *testing.T) {
	client := &fakeEmbeddingClient{vectors: [][]float32{{0.1, 0.2, 0.3}}}
	emb := llm.NewEmbedderWithClient(llm.EmbedderConfig{Model: "nomic-embed-text", Dimension: 3}, client)

	vec, err := emb.Embed(context.Background(), "Q. Is data encrypted?")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, []string{"Q. Is data encrypted?"}, client.inputs)
	assert.Equal(t, "ollama/nomic-embed-text", emb.Model())
}

func TestEmbedderErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeEmbeddingClient
	}{
		{"client error", &fakeEmbeddingClient{err: errors.New("connection refused")}},
		{"no vectors", &fakeEmbeddingClient{}},
		{"empty vector", &fakeEmbeddingClient{vectors: [][]float32{{}}}},
		{"dimension mismatch", &fakeEmbeddingClient{vectors: [][]float32{{0.1, 0.2}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := llm.NewEmbedderWithClient(llm.EmbedderConfig{Dimension: 3}, tt.client)
			_, err := emb.Embed(context.Background(), "text")
			assert.ErrorIs(t, err, types.ErrEmbedding)
		})
	}
}

func TestNewEmbedderWithConfig(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{BaseURL: "http://localhost:11434"})
	require.NoError(t, err)
	assert.Equal(t, "ollama/nomic-embed-text:latest", emb.Model())
}

type fakeModel struct {
	reply   string
	err     error
	block   bool
	prompts []string
	opts    llms.CallOptions
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, opt := range options {
		opt(&f.opts)
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	for _, m := range messages {
		for _, part := range m.Parts {
			if text, ok := part.(llms.TextContent); ok {
				f.prompts = append(f.prompts, text.Text)
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestChatEngineComplete(t *testing.T) {
	model := &fakeModel{reply: "はい"}
	engine, err := llm.NewWithModel(llm.ChatConfig{Temperature: 0.2, MaxTokens: 256}, model)
	require.NoError(t, err)

	answer, err := engine.Complete(context.Background(), "クエリ: 暗号化されていますか？")
	require.NoError(t, err)
	assert.Equal(t, "はい", answer)
	assert.Equal(t, []string{"クエリ: 暗号化されていますか？"}, model.prompts)
	assert.Equal(t, 0.2, model.opts.Temperature)
	assert.Equal(t, 256, model.opts.MaxTokens)
}

func TestChatEngineErrors(t *testing.T) {
	t.Run("model error", func(t *testing.T) {
		engine, err := llm.NewWithModel(llm.ChatConfig{}, &fakeModel{err: errors.New("boom")})
		require.NoError(t, err)

		_, err = engine.Complete(context.Background(), "prompt")
		assert.ErrorIs(t, err, types.ErrUpstreamGeneration)
	})

	t.Run("timeout", func(t *testing.T) {
		engine, err := llm.NewWithModel(llm.ChatConfig{Timeout: 20 * time.Millisecond}, &fakeModel{block: true})
		require.NoError(t, err)

		_, err = engine.Complete(context.Background(), "prompt")
		assert.ErrorIs(t, err, types.ErrUpstreamGeneration)
	})
}

func TestNewWithConfig(t *testing.T) {
	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       "testmodel",
		Temperature: 0.5,
		MaxTokens:   1000,
		BaseURL:     "http://localhost:1234",
	})
	assert.NoError(t, err)
	assert.NotNil(t, engine)

	_, err = llm.NewWithConfig(llm.ChatConfig{Temperature: 3})
	assert.Error(t, err)

	_, err = llm.NewWithConfig(llm.ChatConfig{MaxTokens: -1})
	assert.Error(t, err)
}

func newOpenAIServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, []string{"hello"}, req.Input)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25]}],"model":"text-embedding-3-small","usage":{"prompt_tokens":1,"total_tokens":1}}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		if req.Messages[0].Content == "fail" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"internal","type":"server_error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"echo: ` + req.Messages[0].Content + `"},"finish_reason":"stop"}]}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIEmbedder(t *testing.T) {
	server := newOpenAIServer(t)

	emb, err := llm.NewOpenAIEmbedder(llm.OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1", Dimension: 2})
	require.NoError(t, err)

	vec, err := emb.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, vec)
	assert.Equal(t, "openai/text-embedding-3-small", emb.Model())

	_, err = llm.NewOpenAIEmbedder(llm.OpenAIConfig{})
	assert.Error(t, err)
}

func TestOpenAICompleter(t *testing.T) {
	server := newOpenAIServer(t)

	c, err := llm.NewOpenAICompleter(llm.OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1", MaxTokens: 100})
	require.NoError(t, err)

	answer, err := c.Complete(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "echo: ping", answer)

	_, err = c.Complete(context.Background(), "fail")
	assert.ErrorIs(t, err, types.ErrUpstreamGeneration)
}

type flakyEmbedder struct {
	failures int
	calls    int
	err      error
}

func (f *flakyEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		if f.err != nil {
			return nil, f.err
		}
		return nil, types.ErrEmbedding
	}
	return []float32{1, 0}, nil
}

func (f *flakyEmbedder) Model() string { return "flaky" }

func TestRetryingEmbedder(t *testing.T) {
	t.Run("recovers from transient failures", func(t *testing.T) {
		inner := &flakyEmbedder{failures: 2}
		r := llm.NewRetryingEmbedder(inner, 2, time.Millisecond, nil)

		vec, err := r.Embed(context.Background(), "text")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0}, vec)
		assert.Equal(t, 3, inner.calls)
		assert.Equal(t, "flaky", r.Model())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		inner := &flakyEmbedder{failures: 10}
		r := llm.NewRetryingEmbedder(inner, 1, time.Millisecond, nil)

		_, err := r.Embed(context.Background(), "text")
		assert.ErrorIs(t, err, types.ErrEmbedding)
		assert.Equal(t, 2, inner.calls)
	})

	t.Run("does not retry cancellation", func(t *testing.T) {
		inner := &flakyEmbedder{failures: 10, err: context.Canceled}
		r := llm.NewRetryingEmbedder(inner, 3, time.Millisecond, nil)

		_, err := r.Embed(context.Background(), "text")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("does not retry dimension mismatch", func(t *testing.T) {
		client := &fakeEmbeddingClient{vectors: [][]float32{{0.1, 0.2}}}
		inner := llm.NewEmbedderWithClient(llm.EmbedderConfig{Dimension: 3}, client)
		r := llm.NewRetryingEmbedder(inner, 3, time.Millisecond, nil)

		_, err := r.Embed(context.Background(), "text")
		assert.ErrorIs(t, err, types.ErrEmbedding)
		assert.ErrorIs(t, err, llm.ErrDimensionMismatch)
		assert.Len(t, client.inputs, 1)
	})

	t.Run("does not retry openai client errors", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
		}))
		defer server.Close()

		inner, err := llm.NewOpenAIEmbedder(llm.OpenAIConfig{APIKey: "sk-bad", BaseURL: server.URL + "/v1"})
		require.NoError(t, err)
		r := llm.NewRetryingEmbedder(inner, 3, time.Millisecond, nil)

		_, err = r.Embed(context.Background(), "text")
		assert.ErrorIs(t, err, types.ErrEmbedding)
		assert.Equal(t, 1, calls)
	})
}

func TestProviderFactories(t *testing.T) {
	cfg := &config.Config{}
	cfg.Embedder.Provider = config.ProviderOpenAI
	cfg.LLM.Provider = config.ProviderOpenAI

	_, err := llm.NewEmbedder(cfg, nil)
	assert.Error(t, err)
	_, err = llm.NewCompleter(cfg)
	assert.Error(t, err)

	cfg.Embedder.Provider = "bogus"
	cfg.LLM.Provider = "bogus"
	_, err = llm.NewEmbedder(cfg, nil)
	assert.Error(t, err)
	_, err = llm.NewCompleter(cfg)
	assert.Error(t, err)

	cfg.Embedder.Provider = config.ProviderOllama
	cfg.Embedder.BaseURL = "http://localhost:11434"
	cfg.LLM.Provider = config.ProviderOllama
	cfg.LLM.Temperature = 0.1
	emb, err := llm.NewEmbedder(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, emb)
	completer, err := llm.NewCompleter(cfg)
	require.NoError(t, err)
	assert.NotNil(t, completer)
}
