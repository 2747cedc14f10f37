// Package cache persists per-class content hashes between runs and guards the
// output directory against concurrent runs.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/helianthus/reflectgen/internal/sink"
)

// FileName is the cache file inside the output directory.
const FileName = ".reflectgen_cache.json"

// Version is bumped whenever the generated output format changes so that
// caches written by older generators never suppress a rewrite.
const Version = 1

// Cache maps class names to the hash of their last emitted record.
type Cache struct {
	Version int               `json:"version"`
	Classes map[string]string `json:"classes"`
}

// New returns an empty cache at the current version.
func New() *Cache {
	return &Cache{Version: Version, Classes: make(map[string]string)}
}

// Path returns the cache file location for an output directory.
func Path(outDir string) string {
	return filepath.Join(outDir, FileName)
}

// Load reads the cache at path. It always returns a usable cache: a missing
// file yields an empty cache and a nil error; an unreadable, corrupt or
// outdated file yields an empty cache and an error saying why it was dropped.
func Load(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return New(), fmt.Errorf("reading cache: %w", err)
	}

	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		return New(), fmt.Errorf("parsing cache: %w", err)
	}
	if c.Version != Version {
		return New(), fmt.Errorf("cache version %d, want %d", c.Version, Version)
	}
	if c.Classes == nil {
		c.Classes = make(map[string]string)
	}
	return &c, nil
}

// Unchanged reports whether name was cached with exactly hash.
func (c *Cache) Unchanged(name, hash string) bool {
	prev, ok := c.Classes[name]
	return ok && prev == hash
}

// Set records the hash for name.
func (c *Cache) Set(name, hash string) {
	c.Classes[name] = hash
}

// Names returns the cached class names, sorted.
func (c *Cache) Names() []string {
	out := make([]string, 0, len(c.Classes))
	for n := range c.Classes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Save writes the cache atomically. Map keys are emitted sorted, so an
// unchanged cache is byte-identical and is not rewritten.
func (c *Cache) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	data = append(data, '\n')
	if sink.Same(path, data) {
		return nil
	}
	if err := sink.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}
