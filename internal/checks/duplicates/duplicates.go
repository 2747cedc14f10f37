// Package duplicates reports class names declared in more than one file.
package duplicates

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/helianthus/reflectgen/internal/checks"
	"github.com/helianthus/reflectgen/internal/model"
)

// ErrDuplicateClass is wrapped by the diagnostics of a run that does not
// allow duplicate class names.
var ErrDuplicateClass = errors.New("duplicate class name")

// DuplicateCheck flags class names that occur more than once. Class names
// key the registries and the output files, so they must be unique per run.
type DuplicateCheck struct {
	allow bool
}

// New creates a DuplicateCheck. With allow set, duplicates are warnings and
// Resolve decides which declaration is kept.
func New(allow bool) *DuplicateCheck {
	return &DuplicateCheck{allow: allow}
}

func (c *DuplicateCheck) Name() string {
	return "duplicates"
}

func (c *DuplicateCheck) Check(ctx context.Context, classes []model.ClassRecord) ([]checks.Diagnostic, error) {
	files := make(map[string][]string)
	for _, cls := range classes {
		files[cls.Name] = append(files[cls.Name], cls.SourceFile)
	}

	names := make([]string, 0, len(files))
	for name, fs := range files {
		if len(fs) > 1 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var diags []checks.Diagnostic
	for _, name := range names {
		fs := append([]string(nil), files[name]...)
		sort.Strings(fs)
		d := checks.Diagnostic{
			Check:   c.Name(),
			Class:   name,
			Files:   fs,
			Message: fmt.Sprintf("class %s is declared %d times", name, len(fs)),
		}
		if c.allow {
			d.Severity = checks.SeverityWarning
			d.Message += fmt.Sprintf("; keeping the one in %s", fs[len(fs)-1])
		} else {
			d.Severity = checks.SeverityError
			d.Err = ErrDuplicateClass
		}
		diags = append(diags, d)
	}
	return diags, nil
}

// Resolve returns one record per class name, sorted by name. Of several
// declarations the one from the lexicographically last source path wins.
func Resolve(classes []model.ClassRecord) []model.ClassRecord {
	byName := make(map[string]model.ClassRecord, len(classes))
	for _, cls := range classes {
		if prev, ok := byName[cls.Name]; ok && prev.SourceFile > cls.SourceFile {
			continue
		}
		byName[cls.Name] = cls
	}
	out := make([]model.ClassRecord, 0, len(byName))
	for _, cls := range byName {
		out = append(out, cls)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
