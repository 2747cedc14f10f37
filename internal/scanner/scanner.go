// Package scanner finds candidate C++ source files under a root directory.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/helianthus/reflectgen/internal/logger"
	"github.com/helianthus/reflectgen/internal/model"
)

// Options controls which files are considered.
type Options struct {
	HeaderExts []string // e.g. ".h", ".hpp"
	SourceExts []string // e.g. ".cpp", ".cc"

	// Ignore holds doublestar patterns matched against slash-separated paths
	// relative to the root.
	Ignore []string

	RespectGitignore bool

	// ExcludeDirs are absolute directories never descended into, such as the
	// generator's own output directory.
	ExcludeDirs []string
}

// DefaultHeaderExts and DefaultSourceExts are the recognised suffixes.
var (
	DefaultHeaderExts = []string{".h", ".hpp", ".hh", ".hxx", ".inl"}
	DefaultSourceExts = []string{".cpp", ".cc", ".cxx", ".c++"}
)

// Skipped is an entry the walk could not read.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result is the outcome of one scan.
type Result struct {
	Files   []model.SourceFile
	Skipped []Skipped
}

var vcsDirs = map[string]struct{}{
	".git": {},
	".hg":  {},
	".svn": {},
}

// IsVCSDir reports whether name is a version control metadata directory.
func IsVCSDir(name string) bool {
	_, ok := vcsDirs[name]
	return ok
}

// Scan walks root and returns every file whose extension is a header or
// source extension, sorted by relative path. Unreadable entries are recorded
// in Result.Skipped and do not abort the walk; only an unreadable root does.
func Scan(ctx context.Context, root string, opts Options) (Result, error) {
	log := logger.FromContext(ctx).WithPrefix("scanner")

	root, err := filepath.Abs(root)
	if err != nil {
		return Result{}, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return Result{}, fmt.Errorf("source root: %w", err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("source root %s is not a directory", root)
	}

	for _, p := range opts.Ignore {
		if !doublestar.ValidatePattern(p) {
			return Result{}, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}

	kinds := make(map[string]model.FileKind)
	for _, ext := range opts.HeaderExts {
		kinds[strings.ToLower(ext)] = model.KindHeader
	}
	for _, ext := range opts.SourceExts {
		kinds[strings.ToLower(ext)] = model.KindTranslationUnit
	}

	excluded := make(map[string]struct{}, len(opts.ExcludeDirs))
	for _, d := range opts.ExcludeDirs {
		if abs, err := filepath.Abs(d); err == nil {
			excluded[abs] = struct{}{}
		}
	}

	var gi *ignore.GitIgnore
	if opts.RespectGitignore {
		gi = loadGitignore(root)
	}

	var res Result
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			log.Warn("skipping unreadable entry", "path", path, "err", walkErr)
			res.Skipped = append(res.Skipped, Skipped{Path: path, Reason: walkErr.Error()})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := vcsDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			if _, skip := excluded[path]; skip {
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			if ignored(opts.Ignore, rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		kind, ok := kinds[strings.ToLower(filepath.Ext(d.Name()))]
		if !ok {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if ignored(opts.Ignore, rel) {
			return nil
		}

		res.Files = append(res.Files, model.SourceFile{Path: path, RelPath: rel, Kind: kind})
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Slice(res.Files, func(i, j int) bool {
		return res.Files[i].RelPath < res.Files[j].RelPath
	})
	log.Debug("scan complete", "files", len(res.Files), "skipped", len(res.Skipped))
	return res, nil
}

func ignored(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
