package rag_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamillle/rag-sample/internal/models"
	"github.com/kamillle/rag-sample/internal/types"
	"github.com/kamillle/rag-sample/pkg/config"
	"github.com/kamillle/rag-sample/pkg/index"
	"github.com/kamillle/rag-sample/pkg/rag"
	"github.com/kamillle/rag-sample/pkg/retriever"
	"github.com/kamillle/rag-sample/pkg/synth"
)

type stubRetriever struct {
	nodes []models.ScoredNode
	err   error
	calls int
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string) ([]models.ScoredNode, error) {
	s.calls++
	return s.nodes, s.err
}

type stubSynthesizer struct {
	answer string
	err    error
	block  bool
	calls  int
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, _ string, _ []models.ScoredNode) (string, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.answer, s.err
}

func TestAskValidation(t *testing.T) {
	r := &stubRetriever{}
	engine := rag.New(rag.EngineConfig{}, r, &stubSynthesizer{}, nil)

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := engine.Ask(context.Background(), q)
		assert.ErrorIs(t, err, types.ErrValidation)
	}
	assert.Zero(t, r.calls)
}

func TestAskNoRelevantContext(t *testing.T) {
	s := &stubSynthesizer{answer: "should not be used"}
	engine := rag.New(rag.EngineConfig{}, &stubRetriever{}, s, nil)

	resp, err := engine.Ask(context.Background(), " ping ")
	require.NoError(t, err)

	assert.False(t, resp.Found)
	assert.Equal(t, "ping", resp.Question)
	assert.Equal(t, config.DefaultNoAnswerMessage, resp.Answer)
	assert.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)
	assert.Zero(t, s.calls)
}

func TestAskCustomNoAnswerMessage(t *testing.T) {
	engine := rag.New(rag.EngineConfig{NoAnswerMessage: "nothing"}, &stubRetriever{}, &stubSynthesizer{}, nil)

	resp, err := engine.Ask(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "nothing", resp.Answer)
}

func TestAskAnswers(t *testing.T) {
	nodes := []models.ScoredNode{
		{Node: models.Node{ID: "a", Text: "Q. 暗号化? A. はい"}, Score: 0.93},
	}
	s := &stubSynthesizer{answer: "はい"}
	engine := rag.New(rag.EngineConfig{}, &stubRetriever{nodes: nodes}, s, nil)

	resp, err := engine.Ask(context.Background(), "暗号化されていますか？")
	require.NoError(t, err)

	assert.True(t, resp.Found)
	assert.Equal(t, "はい", resp.Answer)
	assert.Equal(t, nodes, resp.Sources)
	assert.Equal(t, 1, s.calls)
}

func TestAskErrors(t *testing.T) {
	nodes := []models.ScoredNode{{Node: models.Node{ID: "a"}, Score: 0.9}}

	t.Run("embedding failure", func(t *testing.T) {
		engine := rag.New(rag.EngineConfig{}, &stubRetriever{err: errors.Join(types.ErrEmbedding, errors.New("down"))}, &stubSynthesizer{}, nil)
		_, err := engine.Ask(context.Background(), "q")
		assert.ErrorIs(t, err, types.ErrEmbedding)
	})

	t.Run("generation failure", func(t *testing.T) {
		engine := rag.New(rag.EngineConfig{}, &stubRetriever{nodes: nodes}, &stubSynthesizer{err: types.ErrUpstreamGeneration}, nil)
		_, err := engine.Ask(context.Background(), "q")
		assert.ErrorIs(t, err, types.ErrUpstreamGeneration)
	})

	t.Run("request timeout", func(t *testing.T) {
		engine := rag.New(rag.EngineConfig{RequestTimeout: 20 * time.Millisecond}, &stubRetriever{nodes: nodes}, &stubSynthesizer{block: true}, nil)
		_, err := engine.Ask(context.Background(), "q")
		assert.ErrorIs(t, err, types.ErrUpstreamGeneration)
	})
}

type vectorEmbedder map[string][]float32

func (v vectorEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec, ok := v[text]
	if !ok {
		return nil, types.ErrEmbedding
	}
	return vec, nil
}

func (v vectorEmbedder) Model() string { return "test" }

type countingCompleter struct {
	calls int
}

func (c *countingCompleter) Complete(_ context.Context, _ string) (string, error) {
	c.calls++
	return "answer", nil
}

func TestAskPipeline(t *testing.T) {
	idx, err := index.Build([]index.Entry{
		{Node: models.Node{ID: "enc", Text: "Q. 暗号化していますか？\nA. はい"}, Embedding: []float32{1, 0, 0}},
		{Node: models.Node{ID: "enc2", Text: "Q. 通信は暗号化されていますか？\nA. はい、TLS1.2以上です"}, Embedding: []float32{0.98, 0.1, 0}},
		{Node: models.Node{ID: "sso", Text: "Q. SSOは使えますか？\nA. はい"}, Embedding: []float32{0, 1, 0}},
	}, "test")
	require.NoError(t, err)

	emb := vectorEmbedder{
		"暗号化について": {1, 0.05, 0},
		"ping":    {0, 0, 1},
	}
	r, err := retriever.New(retriever.RetrieverConfig{TopK: 3, SimilarityCutoff: 0.88}, emb, idx, nil)
	require.NoError(t, err)

	completer := &countingCompleter{}
	engine := rag.New(rag.EngineConfig{}, r, synth.NewRefiner(completer, synth.DefaultTemplates(), nil), nil)

	resp, err := engine.Ask(context.Background(), "ping")
	require.NoError(t, err)
	assert.False(t, resp.Found)
	assert.Empty(t, resp.Sources)
	assert.Zero(t, completer.calls)

	resp, err = engine.Ask(context.Background(), "暗号化について")
	require.NoError(t, err)
	assert.True(t, resp.Found)
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "enc", resp.Sources[0].ID)
	assert.Equal(t, "enc2", resp.Sources[1].ID)
	assert.Equal(t, 2, completer.calls)
}
