package synth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kamillle/rag-sample/internal/models"
	"github.com/kamillle/rag-sample/internal/types"
)

// ErrNoNodes is returned when Synthesize is called without context.
var ErrNoNodes = errors.New("no nodes to synthesize from")

// Refiner drafts an answer from the first node with the QA template and
// folds every further node into it with the refine template. Calls are
// strictly sequential since each step needs the previous draft.
type Refiner struct {
	completer types.Completer
	templates Templates
	logger    *zap.Logger
}

var _ types.Synthesizer = (*Refiner)(nil)

func NewRefiner(completer types.Completer, templates Templates, logger *zap.Logger) *Refiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refiner{
		completer: completer,
		templates: templates,
		logger:    logger,
	}
}

// Synthesize makes exactly len(nodes) completion calls. Any failure discards
// the draft and returns an error wrapping types.ErrUpstreamGeneration.
func (r *Refiner) Synthesize(ctx context.Context, question string, nodes []models.ScoredNode) (string, error) {
	if len(nodes) == 0 {
		return "", ErrNoNodes
	}

	var draft string
	for i, node := range nodes {
		prompt, err := r.render(i, question, node.Text, draft)
		if err != nil {
			return "", err
		}

		answer, err := r.completer.Complete(ctx, prompt)
		if err != nil {
			if !errors.Is(err, types.ErrUpstreamGeneration) {
				err = fmt.Errorf("%w: %v", types.ErrUpstreamGeneration, err)
			}
			return "", fmt.Errorf("step %d/%d: %w", i+1, len(nodes), err)
		}

		r.logger.Debug("refine step",
			zap.Int("step", i+1),
			zap.String("node_id", node.ID),
			zap.Float32("score", node.Score),
		)
		draft = answer
	}

	return draft, nil
}

func (r *Refiner) render(step int, question, nodeText, draft string) (string, error) {
	var (
		prompt string
		err    error
	)
	if step == 0 {
		prompt, err = r.templates.QA.Format(map[string]any{
			"context_str": nodeText,
			"query_str":   question,
		})
	} else {
		prompt, err = r.templates.Refine.Format(map[string]any{
			"context_msg":     nodeText,
			"query_str":       question,
			"existing_answer": draft,
		})
	}
	if err != nil {
		return "", fmt.Errorf("render prompt for step %d: %w", step+1, err)
	}
	return prompt, nil
}
