package types

import (
	"context"

	"github.com/kamillle/rag-sample/internal/models"
)

// Core interfaces
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type DocumentLoader interface {
	LoadDocuments(ctx context.Context, dir string) ([]models.Document, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]models.ScoredNode, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, question string, nodes []models.ScoredNode) (string, error)
}
