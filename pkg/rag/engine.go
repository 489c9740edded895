package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kamillle/rag-sample/internal/models"
	"github.com/kamillle/rag-sample/internal/types"
	"github.com/kamillle/rag-sample/pkg/config"
)

type EngineConfig struct {
	RequestTimeout  time.Duration
	NoAnswerMessage string
}

// ConfigFromConfig extracts the engine settings from the service config.
func ConfigFromConfig(cfg *config.Config) EngineConfig {
	return EngineConfig{
		RequestTimeout:  cfg.Server.RequestTimeout,
		NoAnswerMessage: cfg.Server.NoAnswerMessage,
	}
}

// Engine answers questions against one loaded index. It holds no mutable
// state and is safe for concurrent use once built.
type Engine struct {
	config      EngineConfig
	retriever   types.Retriever
	synthesizer types.Synthesizer
	logger      *zap.Logger
}

func New(cfg EngineConfig, retriever types.Retriever, synthesizer types.Synthesizer, logger *zap.Logger) *Engine {
	if cfg.NoAnswerMessage == "" {
		cfg.NoAnswerMessage = config.DefaultNoAnswerMessage
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		config:      cfg,
		retriever:   retriever,
		synthesizer: synthesizer,
		logger:      logger,
	}
}

// Ask retrieves context for question and synthesizes an answer. When no node
// passes the similarity cutoff the language model is not called and the
// response carries the no-answer message.
func (e *Engine) Ask(ctx context.Context, question string) (*models.Response, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", types.ErrValidation)
	}

	if e.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	nodes, err := e.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, e.classify(ctx, "retrieve", err)
	}

	if len(nodes) == 0 {
		e.logger.Info("no relevant context",
			zap.String("question", question),
			zap.Duration("elapsed", time.Since(start)),
		)
		return &models.Response{
			Question: question,
			Answer:   e.config.NoAnswerMessage,
			Sources:  []models.ScoredNode{},
			Found:    false,
		}, nil
	}

	answer, err := e.synthesizer.Synthesize(ctx, question, nodes)
	if err != nil {
		return nil, e.classify(ctx, "synthesize", err)
	}

	e.logger.Info("answered question",
		zap.String("question", question),
		zap.Int("sources", len(nodes)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &models.Response{
		Question: question,
		Answer:   answer,
		Sources:  nodes,
		Found:    true,
	}, nil
}

// classify maps an expired request deadline onto ErrUpstreamGeneration and
// leaves already classified errors alone.
func (e *Engine) classify(ctx context.Context, stage string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, types.ErrUpstreamGeneration) {
		return fmt.Errorf("%w: %s: request timed out: %v", types.ErrUpstreamGeneration, stage, err)
	}
	return fmt.Errorf("%s: %w", stage, err)
}
