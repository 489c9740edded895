package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kamillle/rag-sample/pkg/config"
	"github.com/kamillle/rag-sample/pkg/index"
	"github.com/kamillle/rag-sample/pkg/store"
)

func TestOpenFileStore(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Driver = config.StorageFile
	cfg.Storage.Dir = t.TempDir()

	s, closeFn, err := store.Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()

	fs, ok := s.(*index.FileStore)
	require.True(t, ok)
	assert.Equal(t, cfg.Storage.Dir, fs.Dir)
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Driver = "s3"

	_, _, err := store.Open(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
