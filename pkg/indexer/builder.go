package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kamillle/rag-sample/internal/models"
	"github.com/kamillle/rag-sample/internal/types"
	"github.com/kamillle/rag-sample/pkg/index"
)

// ErrNoDocuments is returned when the source directory yields no nodes.
var ErrNoDocuments = errors.New("no documents to index")

// Chunker splits documents into nodes.
type Chunker interface {
	Process(docs []models.Document) []models.Node
}

type BuilderConfig struct {
	SourceDir  string
	RateLimit  float64               // embedding calls per second, 0 disables limiting
	OnProgress func(done, total int) // called after every embedded node
}

// Stats summarizes a finished build.
type Stats struct {
	Documents int
	Nodes     int
	Dimension int
	Elapsed   time.Duration
}

// Builder runs the offline pipeline: load, chunk, embed, build and save.
type Builder struct {
	config   BuilderConfig
	loader   types.DocumentLoader
	chunker  Chunker
	embedder types.Embedder
	store    index.Store
	limiter  *rate.Limiter
	logger   *zap.Logger
}

func NewBuilder(config BuilderConfig, loader types.DocumentLoader, chunker Chunker, embedder types.Embedder, store index.Store, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	return &Builder{
		config:   config,
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
	}
}

// Build indexes the source directory and saves the result. The first
// embedding failure aborts the build and nothing is saved.
func (b *Builder) Build(ctx context.Context) (*index.Index, Stats, error) {
	start := time.Now()
	var stats Stats

	docs, err := b.loader.LoadDocuments(ctx, b.config.SourceDir)
	if err != nil {
		return nil, stats, fmt.Errorf("load documents: %w", err)
	}
	stats.Documents = len(docs)

	nodes := b.chunker.Process(docs)
	if len(nodes) == 0 {
		return nil, stats, fmt.Errorf("%w in %s", ErrNoDocuments, b.config.SourceDir)
	}
	stats.Nodes = len(nodes)

	b.logger.Info("chunked documents",
		zap.Int("documents", len(docs)),
		zap.Int("nodes", len(nodes)),
	)

	entries, err := b.embedNodes(ctx, nodes)
	if err != nil {
		return nil, stats, err
	}

	idx, err := index.Build(entries, b.embedder.Model())
	if err != nil {
		return nil, stats, fmt.Errorf("build index: %w", err)
	}
	stats.Dimension = idx.Dimension()

	if err := b.store.Save(ctx, idx); err != nil {
		return nil, stats, fmt.Errorf("save index: %w", err)
	}

	stats.Elapsed = time.Since(start)
	b.logger.Info("index saved",
		zap.String("index_id", idx.ID()),
		zap.Int("nodes", idx.Len()),
		zap.Int("dimension", idx.Dimension()),
		zap.Duration("elapsed", stats.Elapsed),
	)
	return idx, stats, nil
}

func (b *Builder) embedNodes(ctx context.Context, nodes []models.Node) ([]index.Entry, error) {
	entries := make([]index.Entry, 0, len(nodes))
	dimension := 0

	for i, node := range nodes {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		vec, err := b.embedder.Embed(ctx, strings.TrimSpace(node.Text))
		if err != nil {
			return nil, fmt.Errorf("embed node %s (%s#%d): %w", node.ID, node.Source, node.Position, err)
		}
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: empty vector for node %s", types.ErrEmbedding, node.ID)
		}
		if dimension == 0 {
			dimension = len(vec)
		} else if len(vec) != dimension {
			return nil, fmt.Errorf("%w: node %s has %d values, expected %d", types.ErrEmbedding, node.ID, len(vec), dimension)
		}

		entries = append(entries, index.Entry{Node: node, Embedding: vec})

		if b.config.OnProgress != nil {
			b.config.OnProgress(i+1, len(nodes))
		}
	}

	return entries, nil
}
