package retriever

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kamillle/rag-sample/internal/models"
	"github.com/kamillle/rag-sample/internal/types"
)

// Searcher is the read side of a vector index.
type Searcher interface {
	Search(q []float32, topK int) ([]models.ScoredNode, error)
	Dimension() int
}

type RetrieverConfig struct {
	TopK             int
	SimilarityCutoff float32
}

// Retriever embeds a question, searches the index and drops every node whose
// score is below the similarity cutoff.
type Retriever struct {
	config   RetrieverConfig
	embedder types.Embedder
	index    Searcher
	logger   *zap.Logger
}

var _ types.Retriever = (*Retriever)(nil)

func New(config RetrieverConfig, embedder types.Embedder, index Searcher, logger *zap.Logger) (*Retriever, error) {
	if config.TopK == 0 {
		config.TopK = 3
	}
	if config.TopK < 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", config.TopK)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Retriever{
		config:   config,
		embedder: embedder,
		index:    index,
		logger:   logger,
	}, nil
}

// Retrieve returns the nodes that passed the cutoff, highest score first. An
// empty result means no relevant context was found.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]models.ScoredNode, error) {
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	if dim := r.index.Dimension(); dim > 0 && len(vec) != dim {
		return nil, fmt.Errorf("%w: query embedding has %d values, index expects %d", types.ErrEmbedding, len(vec), dim)
	}

	candidates, err := r.index.Search(vec, r.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	nodes := make([]models.ScoredNode, 0, len(candidates))
	for _, c := range candidates {
		if c.Score < r.config.SimilarityCutoff {
			r.logger.Debug("dropping node below cutoff",
				zap.String("node_id", c.ID),
				zap.Float32("score", c.Score),
				zap.Float32("cutoff", r.config.SimilarityCutoff),
			)
			continue
		}
		nodes = append(nodes, c)
	}

	r.logger.Debug("retrieved nodes",
		zap.Int("candidates", len(candidates)),
		zap.Int("kept", len(nodes)),
	)
	return nodes, nil
}
