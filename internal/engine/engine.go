package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/helianthus/reflectgen/internal/cache"
	"github.com/helianthus/reflectgen/internal/checks"
	"github.com/helianthus/reflectgen/internal/checks/duplicates"
	"github.com/helianthus/reflectgen/internal/checks/rpc"
	"github.com/helianthus/reflectgen/internal/config"
	"github.com/helianthus/reflectgen/internal/emit"
	"github.com/helianthus/reflectgen/internal/extract"
	"github.com/helianthus/reflectgen/internal/logger"
	"github.com/helianthus/reflectgen/internal/model"
	"github.com/helianthus/reflectgen/internal/reaper"
	"github.com/helianthus/reflectgen/internal/scanner"
	"github.com/helianthus/reflectgen/internal/sink"
)

// Engine orchestrates the generation pipeline.
type Engine struct {
	cfg         *config.Config
	extractor   *extract.Extractor
	checks      *checks.Registry
	aggregators *emit.Registry
	index       *model.Index

	runMu sync.Mutex // serializes runs of this engine
	mu    sync.RWMutex
	last  *Result
}

// New creates a new Engine with the given config. The duplicates and rpc
// checks and every aggregator are registered.
func New(cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:         cfg,
		extractor:   extract.New(cfg.Annotations),
		checks:      checks.NewRegistry(),
		aggregators: emit.DefaultRegistry(),
		index:       model.NewIndex(),
	}
	e.checks.Register(duplicates.New(cfg.AllowDuplicateClasses))
	e.checks.Register(rpc.New(cfg.OptOutTag))
	return e, nil
}

// RegisterCheck adds a check to the engine.
func (e *Engine) RegisterCheck(c checks.Check) {
	e.checks.Register(c)
}

// Config returns the engine config.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Index returns the classes of the last successful run.
func (e *Engine) Index() *model.Index {
	return e.index
}

// LastResult returns the result of the last successful run, or nil.
func (e *Engine) LastResult() *Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// Result is the manifest of one run. File paths are relative to the output
// directory and slash separated.
type Result struct {
	Source      string              `json:"source"`
	Output      string              `json:"output"`
	DryRun      bool                `json:"dry_run,omitempty"`
	Files       int                 `json:"files_scanned"`
	Classes     []string            `json:"classes"`
	Written     []string            `json:"written"`
	Unchanged   []string            `json:"unchanged"`
	Deleted     []string            `json:"deleted"`
	Removed     []string            `json:"removed_classes,omitempty"` // Cached by the previous run, gone now
	Skipped     []scanner.Skipped   `json:"skipped,omitempty"`
	Diagnostics []checks.Diagnostic `json:"diagnostics,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
	Duration    time.Duration       `json:"-"`
	DurationStr string              `json:"duration"`
}

// Summary returns a one-line human readable summary.
func (r *Result) Summary() string {
	verb := "wrote"
	if r.DryRun {
		verb = "would write"
	}
	return fmt.Sprintf("%d classes from %d files: %s %d, %d unchanged, %d deleted, %d warnings in %s",
		len(r.Classes), r.Files, verb, len(r.Written), len(r.Unchanged), len(r.Deleted),
		len(r.Warnings), r.Duration.Round(time.Millisecond))
}

// Manifest returns the last result encoded as indented JSON.
func (e *Engine) Manifest() ([]byte, error) {
	r := e.LastResult()
	if r == nil {
		return nil, fmt.Errorf("no run completed yet")
	}
	return json.MarshalIndent(r, "", "  ")
}

// Run executes the full pipeline: scan -> extract -> check -> emit ->
// aggregate -> reap. Runs against the same output directory are serialized
// by a file lock; a dry run takes no lock and writes nothing.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	start := time.Now()
	log := logger.FromContext(ctx).WithPrefix("engine")

	src, err := filepath.Abs(e.cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("resolving source root: %w", err)
	}
	out, err := filepath.Abs(e.cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("resolving output dir: %w", err)
	}
	res := &Result{Source: src, Output: out, DryRun: e.cfg.DryRun}

	if !e.cfg.DryRun {
		if err := os.MkdirAll(out, 0o755); err != nil {
			return nil, fmt.Errorf("creating output dir: %w", err)
		}
		lock, err := cache.Acquire(ctx, out, e.cfg.LockTimeout)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				log.Warn("releasing lock", "err", err)
			}
		}()
	}

	// 1. Scan
	scanCfg := *e.cfg
	scanCfg.Source, scanCfg.Output = src, out
	scanned, err := scanner.Scan(ctx, src, scanCfg.ScannerOptions())
	if err != nil {
		return nil, fmt.Errorf("scanning: %w", err)
	}
	res.Files = len(scanned.Files)
	res.Skipped = scanned.Skipped
	log.Debug("scanned source tree", "files", len(scanned.Files), "skipped", len(scanned.Skipped))

	// 2. Extract
	records, unreadable, err := e.extractAll(ctx, scanned.Files)
	if err != nil {
		return nil, fmt.Errorf("extraction: %w", err)
	}
	for _, s := range unreadable {
		res.Skipped = append(res.Skipped, s)
		res.Warnings = append(res.Warnings, fmt.Sprintf("skipped %s: %s", s.Path, s.Reason))
	}
	log.Debug("extracted classes", "count", len(records))

	// 3. Check
	diags, err := e.checks.Run(ctx, records)
	if err != nil {
		return nil, err
	}
	res.Diagnostics = diags
	if errs := checks.Errors(diags); len(errs) > 0 {
		return nil, fmt.Errorf("checks failed: %w", errors.Join(errs...))
	}
	for _, d := range diags {
		log.Warn(d.Message, "check", d.Check, "files", strings.Join(d.Files, ","))
		res.Warnings = append(res.Warnings, d.Error())
	}
	classes := duplicates.Resolve(records)
	for _, c := range classes {
		res.Classes = append(res.Classes, c.Name)
	}

	// 4. Emit
	var dst sink.OutputSink
	if e.cfg.DryRun {
		dst = sink.NewMemorySink(out)
	} else {
		dst = sink.NewFilesystemSink(out)
	}

	prev, err := cache.Load(cache.Path(out))
	if err != nil {
		log.Warn("ignoring cache", "err", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("cache: %v", err))
	}
	next := cache.New()
	current := make(map[string]bool, len(classes))
	for _, c := range classes {
		current[c.Name] = true
	}
	for _, name := range prev.Names() {
		if !current[name] {
			res.Removed = append(res.Removed, name)
			log.Info("class no longer annotated", "class", name)
		}
	}

	emitOpts := e.cfg.EmitOptions()
	alive := make(map[string]bool, 2*len(classes))
	for i := range classes {
		alive[emit.RegistrationPath(&classes[i])] = true
		alive[emit.ServicesPath(&classes[i])] = true
	}

	outcomes, err := e.emitClasses(ctx, out, dst, prev, classes, emitOpts)
	if err != nil {
		return nil, fmt.Errorf("emitting classes: %w", err)
	}
	for i, o := range outcomes {
		next.Set(classes[i].Name, o.key)
		res.Written = append(res.Written, o.written...)
		res.Unchanged = append(res.Unchanged, o.unchanged...)
	}

	// 5. Aggregate
	for _, f := range e.aggregators.Render(classes, emitOpts) {
		changed, err := dst.WriteFile(ctx, f.Path, f.Content)
		if err != nil {
			return nil, fmt.Errorf("writing %s: %w", f.Path, err)
		}
		if changed {
			res.Written = append(res.Written, f.Path)
		} else {
			res.Unchanged = append(res.Unchanged, f.Path)
		}
	}

	if !e.cfg.DryRun {
		if err := next.Save(cache.Path(out)); err != nil {
			log.Warn("saving cache", "err", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("cache: %v", err))
		}
	}

	// 6. Reap
	deleted, err := reaper.Reap(ctx, out, alive, reaper.Options{DryRun: e.cfg.DryRun})
	if err != nil {
		return nil, fmt.Errorf("reaping: %w", err)
	}
	res.Deleted = deleted

	sort.Strings(res.Written)
	sort.Strings(res.Unchanged)
	res.Duration = time.Since(start)
	res.DurationStr = res.Duration.String()

	e.index.Replace(classes)
	e.mu.Lock()
	e.last = res
	e.mu.Unlock()
	log.Info("generation finished", "classes", len(res.Classes), "written", len(res.Written),
		"unchanged", len(res.Unchanged), "deleted", len(res.Deleted), "duration", res.Duration)
	return res, nil
}

// extractAll reads and extracts every file with a bounded pool of workers.
// Records are returned in discovery order regardless of completion order.
func (e *Engine) extractAll(ctx context.Context, files []model.SourceFile) ([]model.ClassRecord, []scanner.Skipped, error) {
	workers := e.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	type result struct {
		classes []model.ClassRecord
		err     error
	}
	results := make([]result, len(files))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for range min(workers, max(len(files), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				f := files[i]
				src, err := os.ReadFile(f.Path)
				if err != nil {
					results[i].err = err
					continue
				}
				for _, decl := range e.extractor.File(src) {
					results[i].classes = append(results[i].classes, model.BuildClassRecord(decl, f))
				}
			}
		}()
	}

feed:
	for i := range files {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		records    []model.ClassRecord
		unreadable []scanner.Skipped
	)
	for i, r := range results {
		if r.err != nil {
			logger.FromContext(ctx).WithPrefix("engine").Warn("skipping unreadable file", "path", files[i].RelPath, "err", r.err)
			unreadable = append(unreadable, scanner.Skipped{Path: files[i].Path, Reason: r.err.Error()})
			continue
		}
		records = append(records, r.classes...)
	}
	return records, unreadable, nil
}

type classOutcome struct {
	key       string
	written   []string
	unchanged []string
}

// emitClasses writes both fragments of every class in parallel. A class
// whose cache key is unchanged and whose fragments are both on disk is not
// rendered at all.
func (e *Engine) emitClasses(ctx context.Context, outDir string, dst sink.OutputSink, prev *cache.Cache, classes []model.ClassRecord, opts emit.Options) ([]classOutcome, error) {
	workers := e.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	outcomes := make([]classOutcome, len(classes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range classes {
		g.Go(func() error {
			c := &classes[i]
			o := &outcomes[i]
			o.key = cacheKey(c, opts)
			reg, svc := emit.RegistrationPath(c), emit.ServicesPath(c)

			if !e.cfg.DryRun && prev.Unchanged(c.Name, o.key) && sink.Exists(outDir, reg) && sink.Exists(outDir, svc) {
				o.unchanged = []string{reg, svc}
				return nil
			}
			for _, f := range emit.Fragments(c, opts) {
				changed, err := dst.WriteFile(ctx, f.Path, f.Content)
				if err != nil {
					return fmt.Errorf("writing %s: %w", f.Path, err)
				}
				if changed {
					o.written = append(o.written, f.Path)
				} else {
					o.unchanged = append(o.unchanged, f.Path)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// cacheKey combines the record hash with the declaration order of the record
// and the emit options that shape the fragments. model.Hash ignores member
// order, but the fragments register members in source order and keep the
// first of each method name, so a reordering must regenerate too.
func cacheKey(c *model.ClassRecord, opts emit.Options) string {
	ordered := *c
	ordered.Line = 0
	layout, err := json.Marshal(ordered)
	if err != nil {
		panic("engine: class record not serialisable: " + err.Error())
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%t", model.Hash(c), layout, opts.IncludePrefix, opts.OptOutTag, opts.SkipAutoRegister)
	return hex.EncodeToString(h.Sum(nil))
}
