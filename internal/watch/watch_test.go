package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helianthus/reflectgen/internal/config"
	"github.com/helianthus/reflectgen/internal/engine"
	"github.com/helianthus/reflectgen/internal/logger"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) Run(context.Context) (*engine.Result, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return &engine.Result{}, nil
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(logger.ContextWithLogger(context.Background(), logger.NewLogger(logger.TestConfig())))
	t.Cleanup(cancel)
	return ctx
}

// startWatch runs a watcher in the background and returns a channel that
// receives one value per completed run.
func startWatch(t *testing.T, ctx context.Context, r Runner, src, out string) <-chan error {
	t.Helper()
	ctx, cancel := context.WithCancel(ctx)
	runs := make(chan error, 16)
	w, err := New(r, Options{
		Source:   src,
		Output:   out,
		Exts:     []string{".h", ".cpp"},
		Debounce: 50 * time.Millisecond,
		OnRun:    func(_ *engine.Result, err error) { runs <- err },
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	waitRun(t, runs)
	return runs
}

func waitRun(t *testing.T, runs <-chan error) error {
	t.Helper()
	select {
	case err := <-runs:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a run")
		return nil
	}
}

func assertNoRun(t *testing.T, runs <-chan error, wait time.Duration) {
	t.Helper()
	select {
	case <-runs:
		t.Fatal("unexpected run")
	case <-time.After(wait):
	}
}

func TestWatchDebouncesBurst(t *testing.T) {
	src := t.TempDir()
	r := &countingRunner{}
	runs := startWatch(t, testContext(t), r, src, filepath.Join(src, "Generated"))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(src, "A.h"), []byte("class A {};\n"), 0o644))
	}
	waitRun(t, runs)
	assertNoRun(t, runs, 300*time.Millisecond)
	assert.Equal(t, int32(2), r.calls.Load())
}

func TestWatchNewDirectory(t *testing.T) {
	src := t.TempDir()
	r := &countingRunner{}
	runs := startWatch(t, testContext(t), r, src, "")

	sub := filepath.Join(src, "Game")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to pick up the new directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "Player.cpp"), []byte("// x\n"), 0o644))
	waitRun(t, runs)
}

func TestWatchIgnoresOutputAndOtherFiles(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(src, "Generated")
	require.NoError(t, os.MkdirAll(filepath.Join(out, "classes"), 0o755))
	r := &countingRunner{}
	runs := startWatch(t, testContext(t), r, src, out)

	require.NoError(t, os.WriteFile(filepath.Join(out, "classes", "A_services.cpp"), []byte("// x\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.md"), []byte("x"), 0o644))
	assertNoRun(t, runs, 300*time.Millisecond)
}

func TestWatchKeepsGoingAfterFailure(t *testing.T) {
	src := t.TempDir()
	r := &countingRunner{err: errors.New("boom")}
	ctx := testContext(t)

	runs := make(chan error, 4)
	w, err := New(r, Options{Source: src, Exts: []string{".h"}, Debounce: 20 * time.Millisecond,
		OnRun: func(_ *engine.Result, err error) { runs <- err }})
	require.NoError(t, err)
	go func() { _ = w.Watch(ctx) }()

	assert.EqualError(t, waitRun(t, runs), "boom")
	require.NoError(t, os.WriteFile(filepath.Join(src, "B.h"), []byte("//\n"), 0o644))
	assert.EqualError(t, waitRun(t, runs), "boom")
}

func TestRelevant(t *testing.T) {
	w, err := New(&countingRunner{}, Options{Source: "/src", Output: "/src/out", Exts: []string{".h", ".CPP"}})
	require.NoError(t, err)

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"header write", fsnotify.Event{Name: "/src/A.h", Op: fsnotify.Write}, true},
		{"upper case suffix", fsnotify.Event{Name: "/src/A.Cpp", Op: fsnotify.Create}, true},
		{"chmod only", fsnotify.Event{Name: "/src/A.h", Op: fsnotify.Chmod}, false},
		{"other file", fsnotify.Event{Name: "/src/README.md", Op: fsnotify.Write}, false},
		{"inside output", fsnotify.Event{Name: "/src/out/classes/A_services.h", Op: fsnotify.Write}, false},
		{"output sibling", fsnotify.Event{Name: "/src/outer/A.h", Op: fsnotify.Write}, true},
		{"directory removed", fsnotify.Event{Name: "/src/Game", Op: fsnotify.Remove}, true},
		{"directory created", fsnotify.Event{Name: "/src/Game", Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.relevant(tt.event))
		})
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Source = "src"
	cfg.Output = "out"
	opts := OptionsFromConfig(cfg)
	assert.Contains(t, opts.Exts, ".h")
	assert.Contains(t, opts.Exts, ".cpp")
	assert.Equal(t, DefaultDebounce, opts.Debounce)
}
