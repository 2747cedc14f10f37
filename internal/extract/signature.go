package extract

import (
	"regexp"
	"strings"

	"github.com/helianthus/reflectgen/internal/model"
)

var (
	attributeRe    = regexp.MustCompile(`\[\[.*?\]\]`)
	returnNoiseRe  = regexp.MustCompile(`\b(?:inline|virtual|constexpr|consteval|constinit|static|friend|volatile|noexcept|override|final|register|explicit|extern|mutable|const)\b`)
	spaceAroundRe  = regexp.MustCompile(`\s*(<|>|,|::)\s*`)
	returnSigils   = strings.NewReplacer("&&", " ", "&", " ", "*", " ")
	templateHeadRe = regexp.MustCompile(`^\s*template\s*<`)
)

// CleanReturnType normalises the text between an annotation and a method
// name into a bare return type: attributes, template heads, storage and cv
// qualifiers and reference or pointer sigils are removed, and whitespace
// around '<', '>', ',' and '::' is dropped.
func CleanReturnType(prefix string) string {
	s := attributeRe.ReplaceAllString(prefix, " ")
	s = stripTemplateHead(s)
	s = returnNoiseRe.ReplaceAllString(s, " ")
	s = returnSigils.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	return spaceAroundRe.ReplaceAllString(s, "$1")
}

// stripTemplateHead removes a leading "template<...>" with balanced angles.
func stripTemplateHead(s string) string {
	loc := templateHeadRe.FindStringIndex(s)
	if loc == nil {
		return s
	}
	depth := 0
	for i := loc[1] - 1; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				return s[i+1:]
			}
		}
	}
	return s
}

var (
	prefixWords = []string{"virtual", "inline", "static", "explicit", "constexpr", "consteval", "friend"}
	suffixWords = []string{"const", "noexcept", "override", "final"}

	wordRes = func() map[string]*regexp.Regexp {
		m := make(map[string]*regexp.Regexp)
		for _, w := range append(append([]string{}, prefixWords...), suffixWords...) {
			m[w] = regexp.MustCompile(`\b` + w + `\b`)
		}
		return m
	}()

	deprecatedAttrRe = regexp.MustCompile(`\[\[\s*deprecated\b`)
	pureVirtualRe    = regexp.MustCompile(`=\s*0\s*$`)
	deletedRe        = regexp.MustCompile(`=\s*delete\s*$`)
	defaultedRe      = regexp.MustCompile(`=\s*default\s*$`)
)

// InferQualifiers derives a method's qualifiers from the declaration text
// before its name, the text after its parameter list and its parsed tags.
// Keywords are looked up on the side of the declarator where C++ allows them,
// so a const parameter never marks the method const.
func InferQualifiers(prefix, suffix string, tags []string) model.Qualifiers {
	q := model.Qualifiers{Access: model.AccessPublic}

	prefix = attributeRe.ReplaceAllStringFunc(prefix, func(attr string) string {
		if deprecatedAttrRe.MatchString(attr) {
			q.IsDeprecated = true
		}
		return " "
	})
	has := func(text, word string) bool { return wordRes[word].MatchString(text) }

	q.IsVirtual = has(prefix, "virtual")
	q.IsInline = has(prefix, "inline")
	q.IsStatic = has(prefix, "static")
	for _, w := range []string{"explicit", "constexpr", "consteval", "friend"} {
		if has(prefix, w) {
			q.Other = append(q.Other, w)
		}
	}

	suffix = trailingSpecifiers(suffix)
	q.IsConst = has(suffix, "const")
	q.IsNoexcept = has(suffix, "noexcept")
	q.IsOverride = has(suffix, "override")
	q.IsFinal = has(suffix, "final")
	switch {
	case pureVirtualRe.MatchString(suffix):
		q.IsVirtual = true
		q.Other = append(q.Other, "abstract")
	case deletedRe.MatchString(suffix):
		q.Other = append(q.Other, "deleted")
	case defaultedRe.MatchString(suffix):
		q.Other = append(q.Other, "defaulted")
	}

	accessSet := false
	for _, t := range tags {
		switch strings.ToLower(t) {
		case "purefunction":
			q.IsPureFunction = true
		case "deprecated":
			q.IsDeprecated = true
		case "const":
			q.IsConst = true
		case "static":
			q.IsStatic = true
		case "virtual":
			q.IsVirtual = true
		case "noexcept":
			q.IsNoexcept = true
		case "override":
			q.IsOverride = true
		case "final":
			q.IsFinal = true
		case "inline":
			q.IsInline = true
		}
		if !accessSet {
			if a, ok := accessFromTag(t); ok {
				q.Access = a
				accessSet = true
			}
		}
	}
	return q
}

func accessFromTag(tag string) (model.Access, bool) {
	switch model.Access(tag) {
	case model.AccessPublic, model.AccessProtected, model.AccessPrivate, model.AccessFriend:
		return model.Access(tag), true
	}
	return "", false
}

// trailingSpecifiers cuts the text after a parameter list down to the
// specifier sequence: a trailing return type or constructor initialiser
// list is dropped.
func trailingSpecifiers(suffix string) string {
	if i := strings.Index(suffix, "->"); i >= 0 {
		suffix = suffix[:i] + tailAfterArrow(suffix[i:])
	}
	for i := 0; i < len(suffix); i++ {
		if suffix[i] != ':' {
			continue
		}
		if i+1 < len(suffix) && suffix[i+1] == ':' {
			i++
			continue
		}
		return strings.TrimSpace(suffix[:i])
	}
	return strings.TrimSpace(suffix)
}

// tailAfterArrow keeps only a trailing "= 0", "= delete" or "= default" from
// a trailing return type clause such as "-> int override = 0".
func tailAfterArrow(s string) string {
	var out []string
	for _, w := range []string{"override", "final"} {
		if wordRes[w].MatchString(s) {
			out = append(out, w)
		}
	}
	if i := strings.LastIndexByte(s, '='); i >= 0 {
		out = append(out, s[i:])
	}
	return " " + strings.Join(out, " ")
}

// TrailingReturnType returns the type after "->" in a suffix, if any.
func TrailingReturnType(suffix string) string {
	i := strings.Index(suffix, "->")
	if i < 0 {
		return ""
	}
	t := suffix[i+2:]
	for _, w := range []string{"override", "final", "noexcept"} {
		t = wordRes[w].ReplaceAllString(t, " ")
	}
	if j := strings.IndexByte(t, '='); j >= 0 {
		t = t[:j]
	}
	return CleanReturnType(t)
}

// DocComment collects the comment lines directly above line idx (0-based) of
// lines, skipping blank lines and stopping at the first line of code. Line
// comments and single-line block comments qualify; the texts are joined in
// source order with a single space.
func DocComment(lines []string, idx int) string {
	var parts []string
	for i := idx - 1; i >= 0; i-- {
		t := strings.TrimSpace(lines[i])
		if t == "" {
			continue
		}
		text, ok := commentText(t)
		if !ok {
			break
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	for l, r := 0, len(parts)-1; l < r; l, r = l+1, r-1 {
		parts[l], parts[r] = parts[r], parts[l]
	}
	return strings.Join(parts, " ")
}

func commentText(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "//"):
		t := strings.TrimLeft(line, "/")
		t = strings.TrimPrefix(t, "!")
		return strings.TrimSpace(t), true
	case strings.HasPrefix(line, "/*") && strings.HasSuffix(line, "*/") && len(line) >= 4:
		t := strings.TrimSuffix(strings.TrimPrefix(line, "/*"), "*/")
		t = strings.TrimLeft(t, "*!")
		return strings.TrimSpace(t), true
	}
	return "", false
}
