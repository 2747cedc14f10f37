// Package reaper removes per-class fragments left behind by classes that no
// longer exist.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/helianthus/reflectgen/internal/emit"
	"github.com/helianthus/reflectgen/internal/logger"
)

// fragmentRe matches the only file names the reaper may ever delete.
var fragmentRe = regexp.MustCompile(`^[A-Za-z_]\w*(?:` + regexp.QuoteMeta(emit.RegistrationSuffix) + `|` + regexp.QuoteMeta(emit.ServicesSuffix) + `)$`)

// IsFragment reports whether name looks like a generated per-class fragment.
func IsFragment(name string) bool {
	return fragmentRe.MatchString(name)
}

// Options control a reap pass.
type Options struct {
	// DryRun reports stale files without deleting anything.
	DryRun bool
}

// Reap deletes every fragment under <outDir>/classes whose output-relative
// slash path is not in alive, then prunes the directories that removal left
// empty. It returns
// the deleted paths, relative to outDir and sorted.
func Reap(ctx context.Context, outDir string, alive map[string]bool, opts Options) ([]string, error) {
	log := logger.FromContext(ctx).WithPrefix("reaper")
	root := filepath.Join(outDir, emit.ClassesDir)

	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var stale []string
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root {
				dirs = append(dirs, path)
			}
			return nil
		}
		if !d.Type().IsRegular() || !IsFragment(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(outDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !alive[rel] {
			stale = append(stale, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	sort.Strings(stale)

	if opts.DryRun {
		return stale, nil
	}

	// Only directories emptied by this pass are pruned; empty directories
	// that were already there are left alone.
	emptied := make(map[string]bool)
	for _, rel := range stale {
		full := filepath.Join(outDir, filepath.FromSlash(rel))
		if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("removing stale fragment %s: %w", rel, err)
		}
		emptied[filepath.Dir(full)] = true
		log.Info("removed stale fragment", "path", rel)
	}

	// Deepest first so parents emptied by their children go too.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		if !emptied[dir] {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil {
			return nil, fmt.Errorf("pruning %s: %w", dir, err)
		}
		emptied[filepath.Dir(dir)] = true
		log.Debug("pruned empty directory", "path", dir)
	}
	return stale, nil
}
