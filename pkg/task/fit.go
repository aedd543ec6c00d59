package task

import (
	"context"
	"time"

	"github.com/haivivi/mlptask/pkg/lookup"
	"github.com/haivivi/mlptask/pkg/metrics"
)

// Fit builds a model from req.Texts and persists it.
//
// Fit never returns an error; failures are logged and reported in the
// result, and leave IsFitted unchanged. When req.ModelDir names another
// root, the task switches to that store before building, and keeps it even
// if the fit fails. A model that was built but could not be persisted
// still replaces the in-memory model.
func (t *Task) Fit(ctx context.Context, req FitRequest) (res FitResult) {
	start := time.Now()
	defer func() {
		t.metrics.Observe(metrics.OpFit, start, res.Err)
		t.metrics.SetModel(t.model.Len(), t.fitted)
	}()

	log := t.logger.With("texts", len(req.Texts), "model_dir", req.ModelDir, "previous_model_dir", req.PreviousModelDir)

	store, cfg, owned, err := t.resolve(ctx, req.ModelDir)
	if err != nil {
		log.Error("fit execution error", "error", err)
		return FitResult{Err: &PersistenceError{Op: "open", Root: cfg.Dir, Err: err}}
	}
	if owned {
		if cerr := t.store.Close(); cerr != nil {
			log.Warn("close previous store", "root", t.store.Root(), "error", cerr)
		}
		t.store, t.storeCfg = store, cfg
	}

	if err := ctx.Err(); err != nil {
		log.Error("fit execution error", "error", err)
		return FitResult{Root: store.Root(), Err: err}
	}

	t.model = lookup.Build(req.Texts)
	if err := t.saveState(ctx); err != nil {
		log.Error("fit execution error", "root", store.Root(), "error", err)
		return FitResult{Root: store.Root(), Err: &PersistenceError{Op: "save", Root: store.Root(), Err: err}}
	}
	t.fitted = true

	log.Info("model fitted", "root", store.Root(), "entries", t.model.Len())
	return FitResult{Entries: t.model.Len(), Root: store.Root()}
}
