package task

import (
	"context"
	"fmt"
	"time"

	"github.com/haivivi/mlptask/pkg/metrics"
)

// Prune deletes the persisted state under dir, or under the configured
// root when dir is empty. Missing state is an error matching
// storage.ErrNotFound. The in-memory model and IsFitted are not changed.
func (t *Task) Prune(ctx context.Context, dir string) (err error) {
	start := time.Now()
	defer func() { t.metrics.Observe(metrics.OpPrune, start, err) }()

	store, _, owned, err := t.resolve(ctx, dir)
	if err != nil {
		return fmt.Errorf("task: prune: %w", err)
	}
	if owned {
		defer store.Close()
	}
	if err := store.Delete(ctx, t.cfg.StateKey); err != nil {
		return fmt.Errorf("task: prune %s: %w", store.Root(), err)
	}
	t.logger.Info("pruned state", "root", store.Root(), "key", t.cfg.StateKey)
	return nil
}
