package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/haivivi/mlptask/pkg/statecodec"
	"github.com/haivivi/mlptask/pkg/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func localConfig(dir string) Config {
	return Config{Storage: storage.Config{Kind: storage.KindLocal, Dir: dir}}
}

func newTestTask(t *testing.T, cfg Config, opts ...Option) *Task {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	tk, err := New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tk.Close() })
	return tk
}

func mustFit(t *testing.T, tk *Task, req FitRequest) FitResult {
	t.Helper()
	res := tk.Fit(context.Background(), req)
	if !res.OK() {
		t.Fatalf("fit failed: %v", res.Err)
	}
	return res
}

func values(groups []Items) []string {
	var out []string
	for _, g := range groups {
		for _, it := range g.Items {
			out = append(out, it.Value)
		}
	}
	return out
}

func TestLifecycleLocal(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	tk := newTestTask(t, localConfig(dir))
	if tk.IsFitted() {
		t.Fatal("fresh task should be unfitted")
	}

	res := mustFit(t, tk, FitRequest{Texts: []string{"a", "b"}})
	if res.Entries != 2 {
		t.Fatalf("Entries = %d, want 2", res.Entries)
	}
	if !tk.IsFitted() {
		t.Fatal("task should be fitted after a successful fit")
	}

	got, err := tk.Predict(ctx, []string{"0", "1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v := values(got); len(v) != 2 || v[0] != "a" || v[1] != "b" {
		t.Fatalf("predict = %v, want [a b]", v)
	}

	got, err = tk.Predict(ctx, []string{"z"}, nil)
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), `"z"`) {
		t.Fatalf("error should name the key: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no results, got %v", got)
	}

	if err := tk.Prune(ctx, ""); err != nil {
		t.Fatal(err)
	}
	fresh := newTestTask(t, localConfig(dir))
	if fresh.IsFitted() {
		t.Fatal("task built after prune should be unfitted")
	}
}

func TestFitThenPredictEachText(t *testing.T) {
	cases := [][]string{
		{"only"},
		{"a", "a", "a"},
		{"", "spaces here", "ünïcödé", "0", "1"},
		strings.Fields("the quick brown fox jumps over the lazy dog"),
	}
	for _, texts := range cases {
		tk := newTestTask(t, localConfig(t.TempDir()))
		mustFit(t, tk, FitRequest{Texts: texts})
		if !tk.IsFitted() {
			t.Fatal("expected fitted")
		}
		for i, want := range texts {
			got, err := tk.Predict(context.Background(), []string{strconv.Itoa(i)}, nil)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 || len(got[0].Items) != 1 || got[0].Items[0].Value != want {
				t.Fatalf("predict(%d) = %v, want %q", i, got, want)
			}
		}
	}
}

func TestPredictBatchStopsAtFirstMissing(t *testing.T) {
	tk := newTestTask(t, localConfig(t.TempDir()))
	mustFit(t, tk, FitRequest{Texts: []string{"a", "b"}})

	got, err := tk.Predict(context.Background(), []string{"0", "7", "1", "8"}, nil)
	var knf *KeyNotFoundError
	if !errors.As(err, &knf) || knf.Key != "7" {
		t.Fatalf("expected KeyNotFoundError for 7, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected no partial results, got %v", got)
	}
}

func TestPredictOrderAndDuplicates(t *testing.T) {
	tk := newTestTask(t, localConfig(t.TempDir()))
	mustFit(t, tk, FitRequest{Texts: []string{"x", "y", "z"}})

	got, err := tk.Predict(context.Background(), []string{"2", "0", "2", "1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v := strings.Join(values(got), ","); v != "z,x,z,y" {
		t.Fatalf("predict = %s", v)
	}
}

func TestPredictUnfitted(t *testing.T) {
	tk := newTestTask(t, localConfig(t.TempDir()))
	_, err := tk.Predict(context.Background(), []string{"0"}, nil)
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound on unfitted task, got %v", err)
	}
	got, err := tk.Predict(context.Background(), nil, nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty batch = %v, %v", got, err)
	}
}

func TestNewRestoresState(t *testing.T) {
	dir := t.TempDir()
	first := newTestTask(t, localConfig(dir))
	mustFit(t, first, FitRequest{Texts: []string{"kept"}})

	second := newTestTask(t, localConfig(dir))
	if !second.IsFitted() {
		t.Fatal("expected restored task to be fitted")
	}
	got, err := second.Predict(context.Background(), []string{"0"}, nil)
	if err != nil || values(got)[0] != "kept" {
		t.Fatalf("predict = %v, %v", got, err)
	}
}

func TestNewUnknownStorageType(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "untouched")
	_, err := New(context.Background(), Config{Storage: storage.Config{Kind: "ftp", Dir: dir}}, WithLogger(quietLogger()))
	if !errors.Is(err, storage.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("no filesystem access expected")
	}
}

func writeRaw(t *testing.T, dir, name, data string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNewCorruptStateIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, DefaultStateKey, "not a model")

	_, err := New(context.Background(), localConfig(dir), WithLogger(quietLogger()))
	if !errors.Is(err, statecodec.ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState, got %v", err)
	}
}

func TestNewCorruptStateTolerated(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, DefaultStateKey, "not a model")

	cfg := localConfig(dir)
	cfg.TolerateCorruptState = true
	tk := newTestTask(t, cfg)
	if tk.IsFitted() {
		t.Fatal("expected unfitted task")
	}
	mustFit(t, tk, FitRequest{Texts: []string{"recovered"}})
	if err := tk.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestReloadIdempotent(t *testing.T) {
	tk := newTestTask(t, localConfig(t.TempDir()))
	mustFit(t, tk, FitRequest{Texts: []string{"a", "b", "c"}})
	ctx := context.Background()

	if err := tk.loadState(ctx); err != nil {
		t.Fatal(err)
	}
	first := tk.model
	if err := tk.loadState(ctx); err != nil {
		t.Fatal(err)
	}
	if !first.Equal(tk.model) {
		t.Fatal("consecutive loads produced different models")
	}
}

func TestReloadMissing(t *testing.T) {
	tk := newTestTask(t, localConfig(t.TempDir()))
	if err := tk.Reload(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// blockedDir returns a path whose parent is a regular file, so creating it
// fails.
func blockedDir(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	writeRaw(t, base, "blocker", "file")
	return filepath.Join(base, "blocker", "models")
}

func TestFitPersistFailureUnfitted(t *testing.T) {
	tk := newTestTask(t, localConfig(t.TempDir()))

	res := tk.Fit(context.Background(), FitRequest{Texts: []string{"a"}, ModelDir: blockedDir(t)})
	if res.OK() {
		t.Fatal("expected fit to fail")
	}
	if !errors.Is(res.Err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", res.Err)
	}
	if tk.IsFitted() {
		t.Fatal("failed fit must not mark the task fitted")
	}
	// The built model replaced the in-memory one even though it was not
	// persisted.
	if _, err := tk.Predict(context.Background(), []string{"0"}, nil); err != nil {
		t.Fatalf("expected in-memory model to be updated: %v", err)
	}
}

func TestFitPersistFailureKeepsFitted(t *testing.T) {
	dir := t.TempDir()
	tk := newTestTask(t, localConfig(dir))
	mustFit(t, tk, FitRequest{Texts: []string{"old"}})

	res := tk.Fit(context.Background(), FitRequest{Texts: []string{"new"}, ModelDir: blockedDir(t)})
	if res.OK() {
		t.Fatal("expected fit to fail")
	}
	if !tk.IsFitted() {
		t.Fatal("failed fit must leave the fitted flag unchanged")
	}

	// The blob at the original root still holds the old model.
	fresh := newTestTask(t, localConfig(dir))
	got, err := fresh.Predict(context.Background(), []string{"0"}, nil)
	if err != nil || values(got)[0] != "old" {
		t.Fatalf("persisted model = %v, %v", got, err)
	}
}

func TestFitCanceledContext(t *testing.T) {
	tk := newTestTask(t, localConfig(t.TempDir()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := tk.Fit(ctx, FitRequest{Texts: []string{"a"}})
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", res.Err)
	}
	if tk.IsFitted() {
		t.Fatal("canceled fit must not mark the task fitted")
	}
}

func TestFitEmptyTexts(t *testing.T) {
	tk := newTestTask(t, localConfig(t.TempDir()))
	res := mustFit(t, tk, FitRequest{})
	if res.Entries != 0 || !tk.IsFitted() {
		t.Fatalf("empty fit: entries=%d fitted=%v", res.Entries, tk.IsFitted())
	}
}

func TestFitModelDirOverride(t *testing.T) {
	def := t.TempDir()
	other := t.TempDir()
	ctx := context.Background()
	tk := newTestTask(t, localConfig(def))

	res := mustFit(t, tk, FitRequest{Texts: []string{"a"}, ModelDir: other, PreviousModelDir: def})
	if res.Root != other {
		t.Fatalf("Root = %q, want %q", res.Root, other)
	}
	if tk.Root() != other {
		t.Fatalf("task root = %q, want %q", tk.Root(), other)
	}
	if _, err := os.Stat(filepath.Join(other, DefaultStateKey)); err != nil {
		t.Fatalf("expected state under override: %v", err)
	}
	if _, err := os.Stat(filepath.Join(def, DefaultStateKey)); !os.IsNotExist(err) {
		t.Fatal("default root should hold no state")
	}

	// Prune without override targets the configured root.
	if err := tk.Prune(ctx, ""); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound at default root, got %v", err)
	}
	if err := tk.Prune(ctx, other); err != nil {
		t.Fatal(err)
	}
}

func TestPruneMissing(t *testing.T) {
	tk := newTestTask(t, localConfig(t.TempDir()))
	err := tk.Prune(context.Background(), "")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPruneKeepsInMemoryModel(t *testing.T) {
	tk := newTestTask(t, localConfig(t.TempDir()))
	mustFit(t, tk, FitRequest{Texts: []string{"a"}})
	if err := tk.Prune(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if !tk.IsFitted() {
		t.Fatal("prune does not change the fitted flag")
	}
	if _, err := tk.Predict(context.Background(), []string{"0"}, nil); err != nil {
		t.Fatal(err)
	}
}

func TestMsgpackStateEncoding(t *testing.T) {
	dir := t.TempDir()
	cfg := localConfig(dir)
	cfg.StateEncoding = statecodec.EncodingMsgpack
	cfg.StateKey = "state/model.msgpack"

	tk := newTestTask(t, cfg)
	mustFit(t, tk, FitRequest{Texts: []string{"p", "q"}})

	data, err := os.ReadFile(filepath.Join(dir, "state", "model.msgpack"))
	if err != nil {
		t.Fatal(err)
	}
	if statecodec.Encoding(data[8]) != statecodec.EncodingMsgpack {
		t.Fatalf("encoding byte = %d", data[8])
	}

	// Any encoding is readable regardless of the configured one.
	cfg.StateEncoding = statecodec.EncodingBinary
	fresh := newTestTask(t, cfg)
	got, err := fresh.Predict(context.Background(), []string{"1"}, nil)
	if err != nil || values(got)[0] != "q" {
		t.Fatalf("predict = %v, %v", got, err)
	}
}
