// Package task implements a trainable lookup task whose fitted state lives
// in a pluggable storage backend.
//
// A Task restores its state when created, persists a new model on every
// successful Fit, answers Predict from the in-memory model and deletes the
// persisted state on Prune. A Task is not safe for concurrent use; the host
// must serialize calls.
package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/haivivi/mlptask/pkg/lookup"
	"github.com/haivivi/mlptask/pkg/metrics"
	"github.com/haivivi/mlptask/pkg/statecodec"
	"github.com/haivivi/mlptask/pkg/storage"
)

// DefaultStateKey is the blob name of the fitted state under a root.
const DefaultStateKey = "model.bin"

// Config configures a Task.
type Config struct {
	// Storage selects the backend and the default root.
	Storage storage.Config

	// StateKey is the blob name under the root. Default DefaultStateKey.
	StateKey string

	// StateEncoding is the body encoding used when saving.
	StateEncoding statecodec.Encoding

	// TolerateCorruptState makes New start unfitted when the stored state
	// cannot be decoded, instead of failing.
	TolerateCorruptState bool
}

// Option customizes a Task.
type Option func(*Task)

// WithLogger sets the logger. Default slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Task) { t.logger = l }
}

// WithStorageOptions passes options to every storage.Open the task does.
func WithStorageOptions(opts ...storage.OpenOption) Option {
	return func(t *Task) { t.storeOpts = append(t.storeOpts, opts...) }
}

// WithMetrics records operation counts and latencies in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Task) { t.metrics = m }
}

// Task owns a lookup model and the store its state is persisted to.
type Task struct {
	cfg       Config
	logger    *slog.Logger
	storeOpts []storage.OpenOption
	metrics   *metrics.Metrics

	model    *lookup.Model
	store    storage.FileStore
	storeCfg storage.Config
	fitted   bool
}

// New opens the configured store and restores any previously saved state.
//
// Missing state is logged and leaves the task unfitted. A configuration
// error, an unreachable store or, unless TolerateCorruptState is set,
// undecodable state is returned.
func New(ctx context.Context, cfg Config, opts ...Option) (*Task, error) {
	start := time.Now()
	if cfg.StateKey == "" {
		cfg.StateKey = DefaultStateKey
	}
	t := &Task{
		cfg:    cfg,
		logger: slog.Default(),
		model:  lookup.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.storeOpts = append([]storage.OpenOption{storage.WithLogger(t.logger)}, t.storeOpts...)

	store, err := storage.Open(ctx, cfg.Storage, t.storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("task: open storage: %w", err)
	}
	t.store, t.storeCfg = store, cfg.Storage

	err = t.loadState(ctx)
	t.metrics.Observe(metrics.OpRestore, start, err)
	switch {
	case err == nil:
		t.logger.Info("restored fitted state", "root", store.Root(), "entries", t.model.Len())
	case errors.Is(err, storage.ErrNotFound):
		t.logger.Error("unable to load saved state", "root", store.Root(), "error", err)
	case errors.Is(err, statecodec.ErrCorruptState) && cfg.TolerateCorruptState:
		t.logger.Error("ignoring corrupt saved state", "root", store.Root(), "error", err)
	default:
		store.Close()
		return nil, fmt.Errorf("task: load state from %s: %w", store.Root(), err)
	}
	t.metrics.SetModel(t.model.Len(), t.fitted)
	return t, nil
}

// IsFitted reports whether a model was restored or fitted and persisted.
func (t *Task) IsFitted() bool { return t.fitted }

// Root returns the root of the current store.
func (t *Task) Root() string { return t.store.Root() }

// StateKey returns the blob name of the fitted state.
func (t *Task) StateKey() string { return t.cfg.StateKey }

// Store returns the current store.
func (t *Task) Store() storage.FileStore { return t.store }

// Reload replaces the in-memory model with the persisted state.
func (t *Task) Reload(ctx context.Context) error {
	start := time.Now()
	err := t.loadState(ctx)
	t.metrics.Observe(metrics.OpRestore, start, err)
	t.metrics.SetModel(t.model.Len(), t.fitted)
	return err
}

// Close releases the current store.
func (t *Task) Close() error {
	return t.store.Close()
}

// resolve returns the store for dir (the configured root if empty). The
// current store is reused when it already serves that root; otherwise a new
// one is opened and owned is true.
func (t *Task) resolve(ctx context.Context, dir string) (store storage.FileStore, cfg storage.Config, owned bool, err error) {
	cfg = t.cfg.Storage.WithDir(dir)
	if cfg == t.storeCfg {
		return t.store, cfg, false, nil
	}
	store, err = storage.Open(ctx, cfg, t.storeOpts...)
	if err != nil {
		return nil, cfg, false, err
	}
	return store, cfg, true, nil
}

// saveState writes the current model to the fixed key of the current store.
func (t *Task) saveState(ctx context.Context) error {
	return storage.WriteFunc(ctx, t.store, t.cfg.StateKey, func(w io.Writer) error {
		return statecodec.Encode(w, t.model, statecodec.WithEncoding(t.cfg.StateEncoding))
	})
}

// loadState replaces the model with the decoded state and marks the task
// fitted.
func (t *Task) loadState(ctx context.Context) error {
	var m *lookup.Model
	err := storage.ReadFunc(ctx, t.store, t.cfg.StateKey, func(r io.Reader) error {
		var err error
		m, err = statecodec.Decode(r)
		return err
	})
	if err != nil {
		return err
	}
	t.model = m
	t.fitted = true
	return nil
}
