package index

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kamillle/rag-sample/internal/models"
	"github.com/kamillle/rag-sample/internal/types"
)

const (
	snapshotVersion = 1
	snapshotFile    = "index.gob"
)

// CorruptIndexError reports a persisted index that cannot be read back
// consistently.
type CorruptIndexError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptIndexError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt index %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt index %s: %s", e.Path, e.Reason)
}

func (e *CorruptIndexError) Unwrap() []error {
	if e.Err != nil {
		return []error{types.ErrCorruptIndex, e.Err}
	}
	return []error{types.ErrCorruptIndex}
}

type snapshot struct {
	Version    int
	ID         string
	Model      string
	Dimension  int
	Nodes      []models.Node
	Embeddings [][]float32
}

// FileStore keeps the index as a single gob file inside Dir.
type FileStore struct {
	Dir string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// Path is the location of the persisted index.
func (s *FileStore) Path() string {
	return filepath.Join(s.Dir, snapshotFile)
}

// Save writes the index to a temporary file and renames it over the previous
// one, so a crash mid-write leaves the old index intact.
func (s *FileStore) Save(ctx context.Context, idx *Index) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	snap := snapshot{
		Version:    snapshotVersion,
		ID:         idx.id,
		Model:      idx.model,
		Dimension:  idx.dimension,
		Nodes:      idx.nodes,
		Embeddings: idx.embeddings,
	}

	tmpPath := s.Path() + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}

	if err := gob.NewEncoder(file).Encode(&snap); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode index: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync index file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// Load reads the persisted index. A missing file is reported as ErrNotFound;
// anything unreadable or inconsistent is a *CorruptIndexError.
func (s *FileStore) Load(ctx context.Context) (*Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.Path()
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s: %w", ErrNotFound, path, err)
		}
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer file.Close()

	var snap snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, &CorruptIndexError{Path: path, Reason: "decode failed", Err: err}
	}

	idx, err := fromSnapshot(snap)
	if err != nil {
		return nil, &CorruptIndexError{Path: path, Reason: err.Error()}
	}
	return idx, nil
}

// fromSnapshot validates a decoded snapshot and rebuilds the index.
func fromSnapshot(snap snapshot) (*Index, error) {
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported version %d", snap.Version)
	}
	if len(snap.Nodes) != len(snap.Embeddings) {
		return nil, fmt.Errorf("%d nodes but %d embeddings", len(snap.Nodes), len(snap.Embeddings))
	}
	if len(snap.Nodes) > 0 && snap.Dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", snap.Dimension)
	}

	entries := make([]Entry, len(snap.Nodes))
	for i := range snap.Nodes {
		if len(snap.Embeddings[i]) != snap.Dimension {
			return nil, fmt.Errorf("node %d has %d values, expected %d", i, len(snap.Embeddings[i]), snap.Dimension)
		}
		entries[i] = Entry{Node: snap.Nodes[i], Embedding: snap.Embeddings[i]}
	}

	return build(snap.ID, snap.Model, entries)
}

// Restore rebuilds an index from already persisted parts, applying the same
// consistency checks as Load. It is used by external store backends.
func Restore(id, model string, dimension int, entries []Entry) (*Index, error) {
	snap := snapshot{
		Version:    snapshotVersion,
		ID:         id,
		Model:      model,
		Dimension:  dimension,
		Nodes:      make([]models.Node, len(entries)),
		Embeddings: make([][]float32, len(entries)),
	}
	for i, e := range entries {
		snap.Nodes[i] = e.Node
		snap.Embeddings[i] = e.Embedding
	}
	return fromSnapshot(snap)
}
