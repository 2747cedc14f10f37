package model

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Index provides in-memory lookup over the classes of the last run.
// It is safe for concurrent use; Replace swaps the whole content at once.
type Index struct {
	mu      sync.RWMutex
	classes []ClassRecord

	byName map[string]int   // name -> index into classes
	byFile map[string][]int // source file -> indices
	byTag  map[string][]int // class tag -> indices
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		byName: make(map[string]int),
		byFile: make(map[string][]int),
		byTag:  make(map[string][]int),
	}
}

// Replace discards the current content and indexes classes.
func (x *Index) Replace(classes []ClassRecord) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.classes = make([]ClassRecord, len(classes))
	copy(x.classes, classes)
	x.byName = make(map[string]int, len(classes))
	x.byFile = make(map[string][]int)
	x.byTag = make(map[string][]int)

	for i, c := range x.classes {
		x.byName[c.Name] = i
		x.byFile[c.SourceFile] = append(x.byFile[c.SourceFile], i)
		for _, t := range c.Tags {
			x.byTag[t] = append(x.byTag[t], i)
		}
	}
}

// Count returns the number of indexed classes.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.classes)
}

// All returns a copy of every indexed class in index order.
func (x *Index) All() []ClassRecord {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]ClassRecord, len(x.classes))
	copy(out, x.classes)
	return out
}

// Get returns the class with the exact name.
func (x *Index) Get(name string) (ClassRecord, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	i, ok := x.byName[name]
	if !ok {
		return ClassRecord{}, false
	}
	return x.classes[i], true
}

// ByFile returns the classes declared in the given source file.
func (x *Index) ByFile(file string) []ClassRecord {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.collect(x.byFile[file])
}

// ByTag returns the classes declared with the given class tag.
func (x *Index) ByTag(tag string) []ClassRecord {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.collect(x.byTag[tag])
}

// Query returns classes matching all non-empty criteria: name is a
// case-insensitive substring, file a path prefix, tag a class tag or a
// business tag of any method.
func (x *Index) Query(name, file, tag string) []ClassRecord {
	x.mu.RLock()
	defer x.mu.RUnlock()

	name = strings.ToLower(name)
	var out []ClassRecord
	for _, c := range x.classes {
		if name != "" && !strings.Contains(strings.ToLower(c.Name), name) {
			continue
		}
		if file != "" && !strings.HasPrefix(c.SourceFile, file) {
			continue
		}
		if tag != "" && !classMentionsTag(&c, tag) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func classMentionsTag(c *ClassRecord, tag string) bool {
	if c.HasTag(tag) {
		return true
	}
	for i := range c.Methods {
		for _, t := range c.Methods[i].BusinessTags() {
			if t == tag {
				return true
			}
		}
	}
	return false
}

func (x *Index) collect(indices []int) []ClassRecord {
	out := make([]ClassRecord, 0, len(indices))
	for _, i := range indices {
		out = append(out, x.classes[i])
	}
	return out
}

// Tags returns every class tag in use, sorted.
func (x *Index) Tags() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	tags := make([]string, 0, len(x.byTag))
	for t := range x.byTag {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// WriteJSON writes all classes as an indented JSON array.
func (x *Index) WriteJSON(w io.Writer) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(x.classes); err != nil {
		return fmt.Errorf("encoding classes: %w", err)
	}
	return nil
}
