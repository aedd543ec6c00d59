package task

import (
	"context"
	"time"

	"github.com/haivivi/mlptask/pkg/metrics"
)

// Predict returns one result group per input key, in input order. The
// first key missing from the model ends the batch with a
// *KeyNotFoundError and no results.
//
// Predict does not check IsFitted: an unfitted task holds an empty model
// and fails on any input.
func (t *Task) Predict(ctx context.Context, texts []string, _ any) (_ []Items, err error) {
	start := time.Now()
	defer func() { t.metrics.Observe(metrics.OpPredict, start, err) }()

	out := make([]Items, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !t.model.Has(text) {
			return nil, &KeyNotFoundError{Key: text}
		}
		out = append(out, Items{Items: []Item{{Value: t.model.Predict(text)}}})
	}
	t.metrics.AddPredicted(len(out))
	return out, nil
}
