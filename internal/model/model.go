package model

import (
	"path/filepath"
	"strings"
)

// FileKind distinguishes headers, where the generator may take offsetof/sizeof
// of the real type, from translation units, where it may not.
type FileKind string

const (
	KindHeader          FileKind = "header"
	KindTranslationUnit FileKind = "translation_unit"
)

// SourceFile is a candidate file found by the scanner.
type SourceFile struct {
	Path    string   `json:"path"`     // Absolute path
	RelPath string   `json:"rel_path"` // Relative to the source root, slash separated
	Kind    FileKind `json:"kind"`
}

// Dir returns the slash-separated directory of the file relative to the source root,
// or "" for files at the root.
func (f SourceFile) Dir() string {
	d := filepath.ToSlash(filepath.Dir(filepath.FromSlash(f.RelPath)))
	if d == "." {
		return ""
	}
	return d
}

// ClassRecord is the reflected surface of one annotated class.
type ClassRecord struct {
	Name         string           `json:"name"`
	Scope        string           `json:"scope,omitempty"` // Enclosing namespaces and classes, "::" separated
	Tags         []string         `json:"tags"`
	Properties   []PropertyRecord `json:"properties"`
	Methods      []MethodRecord   `json:"methods"`
	Functions    []string         `json:"functions"`
	HasFactory   bool             `json:"has_factory"`
	HeaderMode   bool             `json:"header_mode"`
	SourceFile   string           `json:"source_file"`   // Relative to the source root
	OutputSubdir string           `json:"output_subdir"` // Mirrors the source directory
	Line         int              `json:"line,omitempty"`
}

// QualifiedName returns the fully qualified C++ type name, e.g. "::Game::Player".
func (c *ClassRecord) QualifiedName() string {
	if c.Scope == "" {
		return "::" + c.Name
	}
	return "::" + c.Scope + "::" + c.Name
}

// HasTag reports whether the class was declared with tag.
func (c *ClassRecord) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// InSubtree reports whether the class source lives under a directory named dir
// at any depth (e.g. "tests" matches "tests/a.h" and "net/tests/b.h").
func (c *ClassRecord) InSubtree(dir string) bool {
	if dir == "" {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(c.SourceFile), "/") {
		if part == dir {
			return true
		}
	}
	return false
}

// PropertyRecord is one HPROPERTY member.
type PropertyRecord struct {
	Tag  string `json:"tag"`
	Name string `json:"name"`
}

// Access is a method's access modifier as declared through tags.
type Access string

const (
	AccessPublic    Access = "Public"
	AccessProtected Access = "Protected"
	AccessPrivate   Access = "Private"
	AccessFriend    Access = "Friend"
)

// Qualifiers are the structural properties of a method signature.
type Qualifiers struct {
	IsPureFunction bool     `json:"is_pure_function"`
	IsConst        bool     `json:"is_const"`
	IsNoexcept     bool     `json:"is_noexcept"`
	IsVirtual      bool     `json:"is_virtual"`
	IsOverride     bool     `json:"is_override"`
	IsFinal        bool     `json:"is_final"`
	IsInline       bool     `json:"is_inline"`
	IsDeprecated   bool     `json:"is_deprecated"`
	IsStatic       bool     `json:"is_static"`
	Access         Access   `json:"access"`
	Other          []string `json:"other,omitempty"`
}

// MethodRecord is one HMETHOD member.
type MethodRecord struct {
	RawTag      string     `json:"raw_tag"`
	Name        string     `json:"name"`
	Params      []string   `json:"params"`
	ReturnType  string     `json:"return_type"`
	Tags        []string   `json:"tags"`
	Description string     `json:"description,omitempty"`
	Qualifiers  Qualifiers `json:"qualifiers"`
}

// structuralTags are tags that only restate a signature qualifier. They are
// captured by Qualifiers and never forwarded to the registries as tags.
var structuralTags = map[string]struct{}{
	"static":   {},
	"virtual":  {},
	"const":    {},
	"noexcept": {},
	"override": {},
	"final":    {},
	"inline":   {},
}

// IsStructuralTag reports whether tag names a signature qualifier rather than
// a business tag. The comparison ignores case.
func IsStructuralTag(tag string) bool {
	_, ok := structuralTags[strings.ToLower(tag)]
	return ok
}

// BusinessTags returns the method's tags with structural qualifier tags removed.
func (m *MethodRecord) BusinessTags() []string {
	out := make([]string, 0, len(m.Tags))
	for _, t := range m.Tags {
		if IsStructuralTag(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
