package model

import "strings"

// ParseTags splits a raw annotation argument string on '|' and ',' into an
// ordered tag set: entries are trimmed, empties dropped and duplicates removed
// with the first occurrence kept.
func ParseTags(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '|' || r == ','
	})
	tags := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tags = append(tags, f)
	}
	return tags
}

// ClassDecl is what the extractor recovers for one annotated class before it
// is bound to a source file.
type ClassDecl struct {
	Name       string
	Scope      string
	RawTags    string
	Line       int // 1-based line of the class keyword
	HasFactory bool
	Body       string

	Properties []PropertyRecord
	Methods    []MethodRecord
	Functions  []string
}

// BuildClassRecord combines an extracted declaration with the file it came from.
func BuildClassRecord(decl ClassDecl, file SourceFile) ClassRecord {
	return ClassRecord{
		Name:         decl.Name,
		Scope:        decl.Scope,
		Tags:         ParseTags(decl.RawTags),
		Properties:   decl.Properties,
		Methods:      decl.Methods,
		Functions:    decl.Functions,
		HasFactory:   decl.HasFactory,
		HeaderMode:   file.Kind == KindHeader,
		SourceFile:   file.RelPath,
		OutputSubdir: file.Dir(),
		Line:         decl.Line,
	}
}
