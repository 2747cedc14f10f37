// Package emit renders the C++ registration sources for reflected classes:
// two fragments per class and a fixed set of whole-tree aggregators.
package emit

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/helianthus/reflectgen/internal/model"
)

const (
	// ClassesDir is the output subdirectory holding per-class fragments.
	ClassesDir = "classes"

	RegistrationSuffix = "_registration.cpp"
	ServicesSuffix     = "_services.cpp"

	// DefaultOptOutTag keeps a class out of automatic service registration.
	DefaultOptOutTag = "NoAutoRegister"
	// DefaultTestsDir names the source subtree whose classes are left out of
	// the aggregators.
	DefaultTestsDir = "Tests"

	// MethodCategory is the category of every generated RPC method record.
	MethodCategory = "ReflectedRpc"
	// ServiceVersion is the version every generated service is registered with.
	ServiceVersion = "1.0.0"

	generatedBanner = "// Generated by reflectgen. Do not edit."
)

// Options control what the emitter produces for a run.
type Options struct {
	// IncludePrefix is prepended to the source-relative path of header-mode
	// classes when including them from a fragment.
	IncludePrefix string
	// OptOutTag marks classes whose service factory is not registered.
	OptOutTag string
	// SkipAutoRegister disables service factory registration for every class.
	SkipAutoRegister bool
	// TestsDir names the source subtree excluded from the aggregators.
	TestsDir string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{OptOutTag: DefaultOptOutTag, TestsDir: DefaultTestsDir}
}

// AutoRegisters reports whether the service fragment of c registers a
// factory for the class.
func (o Options) AutoRegisters(c *model.ClassRecord) bool {
	if o.SkipAutoRegister {
		return false
	}
	return o.OptOutTag == "" || !c.HasTag(o.OptOutTag)
}

// File is one generated output file. Path is slash separated and relative to
// the output directory.
type File struct {
	Path    string
	Content []byte
}

// RegistrationPath returns the output path of the registration fragment of c.
func RegistrationPath(c *model.ClassRecord) string {
	return path.Join(ClassesDir, c.OutputSubdir, c.Name+RegistrationSuffix)
}

// ServicesPath returns the output path of the services fragment of c.
func ServicesPath(c *model.ClassRecord) string {
	return path.Join(ClassesDir, c.OutputSubdir, c.Name+ServicesSuffix)
}

// Fragments renders both per-class fragments of c.
func Fragments(c *model.ClassRecord, opts Options) []File {
	return []File{Registration(c, opts), Services(c, opts)}
}

// Aggregated returns the classes that take part in the whole-tree
// aggregators, sorted by name.
func Aggregated(classes []model.ClassRecord, opts Options) []model.ClassRecord {
	out := make([]model.ClassRecord, 0, len(classes))
	for _, c := range classes {
		if c.InSubtree(opts.TestsDir) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Quote returns s as a C++ narrow string literal.
func Quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '?':
			// avoid trigraphs
			if i+1 < len(s) && s[i+1] == '?' {
				sb.WriteString(`\?`)
			} else {
				sb.WriteByte(c)
			}
		default:
			if c < 0x20 || c == 0x7f {
				// octal escapes never absorb following characters past three digits
				fmt.Fprintf(&sb, `\%03o`, c)
			} else {
				sb.WriteByte(c)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// stringList renders a braced initializer list of string literals.
func stringList(items []string) string {
	if len(items) == 0 {
		return "{}"
	}
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = Quote(it)
	}
	return "{" + strings.Join(quoted, ", ") + "}"
}

func cppBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// includePath returns the include path used for a header-mode class.
func includePath(c *model.ClassRecord, opts Options) string {
	if opts.IncludePrefix == "" {
		return c.SourceFile
	}
	return path.Join(opts.IncludePrefix, c.SourceFile)
}

// writer accumulates C++ source with simple indentation.
type writer struct {
	sb     strings.Builder
	indent int
}

func (w *writer) line(format string, args ...any) {
	if format == "" {
		w.sb.WriteByte('\n')
		return
	}
	w.sb.WriteString(strings.Repeat("    ", w.indent))
	if len(args) == 0 {
		w.sb.WriteString(format)
	} else {
		fmt.Fprintf(&w.sb, format, args...)
	}
	w.sb.WriteByte('\n')
}

// open writes an optional header line followed by an opening brace and
// indents what follows. An empty header opens a bare block.
func (w *writer) open(format string, args ...any) {
	if format != "" {
		w.line(format, args...)
	}
	w.line("{")
	w.indent++
}

func (w *writer) close(suffix string) {
	w.indent--
	w.line("}" + suffix)
}

func (w *writer) bytes() []byte { return []byte(w.sb.String()) }
