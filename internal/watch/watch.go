// Package watch regenerates the output tree whenever annotated sources change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/helianthus/reflectgen/internal/config"
	"github.com/helianthus/reflectgen/internal/engine"
	"github.com/helianthus/reflectgen/internal/logger"
	"github.com/helianthus/reflectgen/internal/scanner"
)

// DefaultDebounce batches bursts of editor writes into one run.
const DefaultDebounce = 200 * time.Millisecond

// Runner performs one generation run.
type Runner interface {
	Run(ctx context.Context) (*engine.Result, error)
}

// Options configure a Watcher.
type Options struct {
	Source   string
	Output   string
	Exts     []string // Header and source suffixes that trigger a run
	Debounce time.Duration

	// OnRun is called after every run, failed or not.
	OnRun func(*engine.Result, error)
}

// OptionsFromConfig derives watcher options from a generator config.
func OptionsFromConfig(cfg *config.Config) Options {
	exts := append([]string(nil), cfg.Extensions.Header...)
	exts = append(exts, cfg.Extensions.Source...)
	return Options{
		Source:   cfg.Source,
		Output:   cfg.Output,
		Exts:     exts,
		Debounce: DefaultDebounce,
	}
}

// Watcher re-runs a Runner when files under the source root change.
type Watcher struct {
	runner Runner
	opts   Options
	exts   map[string]bool
}

// New creates a Watcher. Source and Output are made absolute.
func New(runner Runner, opts Options) (*Watcher, error) {
	var err error
	if opts.Source, err = filepath.Abs(opts.Source); err != nil {
		return nil, fmt.Errorf("resolving source root: %w", err)
	}
	if opts.Output != "" {
		if opts.Output, err = filepath.Abs(opts.Output); err != nil {
			return nil, fmt.Errorf("resolving output dir: %w", err)
		}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	exts := make(map[string]bool, len(opts.Exts))
	for _, e := range opts.Exts {
		exts[strings.ToLower(e)] = true
	}
	return &Watcher{runner: runner, opts: opts, exts: exts}, nil
}

// Watch runs once, then again after every debounced batch of relevant
// changes, until ctx is done. Failed runs are logged and do not stop the
// watch.
func (w *Watcher) Watch(ctx context.Context) error {
	log := logger.FromContext(ctx).WithPrefix("watch")

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	dirs, err := w.addTree(fw, w.opts.Source)
	if err != nil {
		return err
	}
	log.Info("file watcher initialized", "source", w.opts.Source, "watched_directories", dirs)

	w.run(ctx)

	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("context canceled, stopping file watcher")
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && !w.inOutput(event.Name) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if _, err := w.addTree(fw, event.Name); err != nil {
						log.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			if !w.relevant(event) {
				continue
			}
			log.Debug("detected change, debouncing", "file", event.Name, "op", event.Op.String())
			timer.Reset(w.opts.Debounce)
		case <-timer.C:
			w.run(ctx)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) run(ctx context.Context) {
	log := logger.FromContext(ctx).WithPrefix("watch")
	res, err := w.runner.Run(ctx)
	if err != nil {
		log.Error("generation failed", "error", err)
	} else {
		log.Info("regenerated", "classes", len(res.Classes), "written", len(res.Written), "deleted", len(res.Deleted))
	}
	if w.opts.OnRun != nil {
		w.opts.OnRun(res, err)
	}
}

// addTree watches root and every directory below it that is not excluded.
func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (scanner.IsVCSDir(d.Name()) || w.inOutput(path)) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return n, nil
}

func (w *Watcher) inOutput(path string) bool {
	if w.opts.Output == "" {
		return false
	}
	rel, err := filepath.Rel(w.opts.Output, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// relevant reports whether event can change the generated output. Removing
// or renaming an extensionless path counts since it may be a directory.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return false
	}
	if w.inOutput(event.Name) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	if w.exts[ext] {
		return true
	}
	return ext == "" && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename))
}
