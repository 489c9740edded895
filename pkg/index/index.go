package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/kamillle/rag-sample/internal/models"
)

var (
	// ErrInvalidTopK is returned when Search is called with a non-positive top_k.
	ErrInvalidTopK = errors.New("top_k must be a positive integer")

	// ErrDimensionMismatch is returned when a vector does not have the
	// dimensionality of the index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNotFound is returned by a Store that holds no index yet.
	ErrNotFound = errors.New("no persisted index")
)

// Entry pairs a node with its embedding.
type Entry struct {
	Node      models.Node
	Embedding []float32
}

// Store persists and restores a whole index.
type Store interface {
	Save(ctx context.Context, idx *Index) error
	Load(ctx context.Context) (*Index, error)
}

// Index is a flat in-memory vector index. It is never mutated after Build,
// so concurrent Search calls need no locking.
type Index struct {
	id         string
	model      string
	dimension  int
	nodes      []models.Node
	embeddings [][]float32
	norms      []float64
}

// Build constructs an index from entries, keeping their order as the
// insertion order used for tie-breaking.
func Build(entries []Entry, model string) (*Index, error) {
	return build(uuid.NewString(), model, entries)
}

func build(id, model string, entries []Entry) (*Index, error) {
	idx := &Index{
		id:         id,
		model:      model,
		nodes:      make([]models.Node, 0, len(entries)),
		embeddings: make([][]float32, 0, len(entries)),
		norms:      make([]float64, 0, len(entries)),
	}

	for i, e := range entries {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("entry %d (%s): empty embedding", i, e.Node.ID)
		}
		if i == 0 {
			idx.dimension = len(e.Embedding)
		} else if len(e.Embedding) != idx.dimension {
			return nil, fmt.Errorf("%w: entry %d (%s) has %d values, expected %d",
				ErrDimensionMismatch, i, e.Node.ID, len(e.Embedding), idx.dimension)
		}

		vec := make([]float32, len(e.Embedding))
		copy(vec, e.Embedding)

		idx.nodes = append(idx.nodes, e.Node)
		idx.embeddings = append(idx.embeddings, vec)
		idx.norms = append(idx.norms, norm(vec))
	}

	return idx, nil
}

// Search returns at most topK nodes ordered by descending cosine similarity
// to q. Equal scores keep insertion order.
func (idx *Index) Search(q []float32, topK int) ([]models.ScoredNode, error) {
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}
	if len(idx.nodes) == 0 {
		return []models.ScoredNode{}, nil
	}
	if len(q) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d values, index has %d", ErrDimensionMismatch, len(q), idx.dimension)
	}

	qNorm := norm(q)
	results := make([]models.ScoredNode, len(idx.nodes))
	for i := range idx.nodes {
		results[i] = models.ScoredNode{
			Node:  idx.nodes[i],
			Score: cosine(q, qNorm, idx.embeddings[i], idx.norms[i]),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (idx *Index) ID() string     { return idx.id }
func (idx *Index) Model() string  { return idx.model }
func (idx *Index) Dimension() int { return idx.dimension }
func (idx *Index) Len() int       { return len(idx.nodes) }

// Nodes returns a copy of the indexed nodes in insertion order.
func (idx *Index) Nodes() []models.Node {
	out := make([]models.Node, len(idx.nodes))
	copy(out, idx.nodes)
	return out
}

// Entries returns copies of all node/embedding pairs in insertion order.
func (idx *Index) Entries() []Entry {
	out := make([]Entry, len(idx.nodes))
	for i := range idx.nodes {
		vec := make([]float32, len(idx.embeddings[i]))
		copy(vec, idx.embeddings[i])
		out[i] = Entry{Node: idx.nodes[i], Embedding: vec}
	}
	return out
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 when either vector has zero length.
func cosine(a []float32, aNorm float64, b []float32, bNorm float64) float32 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (aNorm * bNorm))
}
