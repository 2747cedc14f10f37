// Package sink provides output destinations for generated files.
package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// OutputSink receives generated file content. Implementations must be safe
// for concurrent calls.
type OutputSink interface {
	// WriteFile stores content at the slash-separated path relative to the
	// sink root. It reports whether the stored content changed.
	WriteFile(ctx context.Context, path string, content []byte) (bool, error)
}

// FilesystemSink writes below Root on the local filesystem. A file whose
// current content already equals the new content is left untouched, so its
// modification time is preserved across identical runs.
type FilesystemSink struct {
	Root string
	Mode os.FileMode
}

// NewFilesystemSink creates a FilesystemSink writing below root.
func NewFilesystemSink(root string) *FilesystemSink {
	return &FilesystemSink{Root: root, Mode: 0o644}
}

func (s *FilesystemSink) WriteFile(ctx context.Context, path string, content []byte) (bool, error) {
	fullPath, err := resolve(s.Root, path)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if Same(fullPath, content) {
		return false, nil
	}
	if err := WriteFileAtomic(fullPath, content, s.Mode); err != nil {
		return false, err
	}
	return true, nil
}

// Same reports whether the file at path exists with exactly content.
func Same(path string, content []byte) bool {
	existing, err := os.ReadFile(path)
	return err == nil && bytes.Equal(existing, content)
}

// WriteFileAtomic writes content to a temp file in the target directory and
// renames it over path, creating parent directories as needed.
func WriteFileAtomic(path string, content []byte, mode os.FileMode) error {
	if mode == 0 {
		mode = 0o644
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directories: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, ".reflectgen-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := func() { _ = os.Remove(tempPath) }

	_, writeErr := tempFile.Write(content)
	closeErr := tempFile.Close()
	if writeErr != nil {
		cleanup()
		return fmt.Errorf("writing temp file: %w", writeErr)
	}
	if closeErr != nil {
		cleanup()
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Chmod(tempPath, mode); err != nil {
		cleanup()
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		cleanup()
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// MemorySink keeps generated files in memory. When Base is set, WriteFile
// reports a change only if the file under Base differs, which makes it a
// dry-run stand-in for a FilesystemSink rooted at Base.
type MemorySink struct {
	Base string

	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemorySink(base string) *MemorySink {
	return &MemorySink{Base: base, files: make(map[string][]byte)}
}

func (s *MemorySink) WriteFile(ctx context.Context, path string, content []byte) (bool, error) {
	if err := ValidatePath(path); err != nil {
		return false, fmt.Errorf("invalid path %q: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, seen := s.files[path]
	s.files[path] = bytes.Clone(content)

	if seen {
		return !bytes.Equal(prev, content), nil
	}
	if s.Base != "" {
		return !Same(filepath.Join(s.Base, filepath.FromSlash(path)), content), nil
	}
	return true, nil
}

// Get returns the content stored at path.
func (s *MemorySink) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.files[path]
	return b, ok
}

var errEscapesRoot = errors.New("path escapes root directory")

// ValidatePath rejects empty, absolute and parent-relative paths.
func ValidatePath(path string) error {
	switch {
	case path == "":
		return errors.New("empty path")
	case filepath.IsAbs(path) || strings.HasPrefix(path, "/"):
		return errors.New("absolute path")
	}
	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return errEscapesRoot
		}
	}
	return nil
}

func resolve(root, path string) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root directory: %w", err)
	}
	full := filepath.Join(absRoot, filepath.FromSlash(path))
	if !strings.HasPrefix(full, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", errEscapesRoot, path)
	}
	return full, nil
}

// Exists reports whether a regular file exists at the slash path below root.
func Exists(root, path string) bool {
	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(path)))
	return err == nil && info.Mode().IsRegular()
}
