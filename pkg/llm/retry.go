package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/kamillle/rag-sample/internal/types"
)

// RetryingEmbedder retries transient embedding failures with exponential
// backoff. Cancellation, dimension mismatches and OpenAI client errors are
// returned at once.
type RetryingEmbedder struct {
	inner           types.Embedder
	maxRetries      uint
	initialInterval time.Duration
	logger          *zap.Logger
}

var _ types.Embedder = (*RetryingEmbedder)(nil)

func NewRetryingEmbedder(inner types.Embedder, maxRetries int, initialInterval time.Duration, logger *zap.Logger) *RetryingEmbedder {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if initialInterval <= 0 {
		initialInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryingEmbedder{
		inner:           inner,
		maxRetries:      uint(maxRetries),
		initialInterval: initialInterval,
		logger:          logger,
	}
}

func (r *RetryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval

	attempt := 0
	return backoff.Retry(ctx, func() ([]float32, error) {
		attempt++
		vec, err := r.inner.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		if isPermanent(ctx, err) {
			return nil, backoff.Permanent(err)
		}

		r.logger.Debug("embedding attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return nil, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.maxRetries+1),
	)
}

func (r *RetryingEmbedder) Model() string {
	return r.inner.Model()
}

func isPermanent(ctx context.Context, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return true
	}
	return errors.Is(err, ErrDimensionMismatch) || isClientError(err)
}
