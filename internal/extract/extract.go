// Package extract recovers annotated classes and their reflected members from
// C++ source text. It recognises annotation macros positionally rather than
// by parsing C++; tree-sitter is only used to blank comments and literals so
// that the positional scan never matches inside them.
package extract

import (
	"regexp"
	"strings"

	"github.com/helianthus/reflectgen/internal/model"
)

// Extractor finds annotated classes using a fixed set of macro names.
type Extractor struct {
	names Names

	classRe    *regexp.Regexp
	propertyRe *regexp.Regexp
	methodRe   *regexp.Regexp
	functionRe *regexp.Regexp
	factoryRe  *regexp.Regexp
}

// New compiles an extractor for names. Names must be valid identifiers.
func New(names Names) *Extractor {
	return &Extractor{
		names:      names,
		classRe:    macroRe(names.Class),
		propertyRe: macroRe(names.Property),
		methodRe:   macroRe(names.Method),
		functionRe: macroRe(names.Function),
		factoryRe:  regexp.MustCompile(`\b` + regexp.QuoteMeta(names.Factory) + `\s*\(\s*\)`),
	}
}

// Names returns the macro names the extractor was built with.
func (e *Extractor) Names() Names { return e.names }

// File extracts every annotated class of one source file with its members.
// Classes are returned in source order; a second annotation for an already
// seen class name in the same file is ignored.
func (e *Extractor) File(src []byte) []model.ClassDecl {
	masked := Mask(src)
	text := string(masked.Comments)
	code := string(masked.Code)
	orig := string(src)

	var (
		out  []model.ClassDecl
		seen = make(map[string]bool)
	)
	for _, loc := range e.classRe.FindAllStringIndex(text, -1) {
		raw, end, ok := macroArgs(text, loc[1])
		if !ok {
			continue
		}
		name, declAt, ok := e.classDecl(text, code, loc[0], end)
		if !ok || seen[name] {
			continue
		}
		body, ok := isolateBody(orig, text, code, declAt, e.classRe)
		if !ok {
			continue
		}
		seen[name] = true

		decl := model.ClassDecl{
			Name:       name,
			Scope:      enclosingScope(text, code, declAt),
			RawTags:    strings.TrimSpace(raw),
			Line:       lineOf(orig, declAt),
			HasFactory: e.factoryRe.MatchString(body.comments),
			Body:       body.orig,
		}
		e.members(body, &decl)
		out = append(out, decl)
	}
	return out
}

var (
	classKeywordRe = regexp.MustCompile(`^\s*(?:template\s*<[^>]*>\s*)?(class|struct)\b`)
	lastClassRe    = regexp.MustCompile(`\b(?:class|struct)\s`)
)

// classDecl finds the class an annotation at [at, end) belongs to: either the
// declaration that immediately follows it, or the class whose body encloses
// it. It returns the class name and the offset of its class keyword.
func (e *Extractor) classDecl(text, code string, at, end int) (string, int, bool) {
	if m := classKeywordRe.FindStringSubmatchIndex(text[end:]); m != nil {
		kw := end + m[2]
		if name, ok := declaredName(text[kw:]); ok {
			return name, kw, true
		}
		return "", 0, false
	}

	open := enclosingBrace(code, at)
	if open < 0 {
		return "", 0, false
	}
	head := text[statementStart(code, open):open]
	locs := lastClassRe.FindAllStringIndex(head, -1)
	if locs == nil {
		return "", 0, false
	}
	kwOff := locs[len(locs)-1][0]
	name, ok := declaredName(head[kwOff:] + "{")
	if !ok {
		return "", 0, false
	}
	return name, open - len(head) + kwOff, true
}

var declaredNameRe = regexp.MustCompile(`^(?:class|struct)\s+((?:\[\[[^\]]*\]\]\s*|(?:alignas|__declspec|__attribute__)\s*\((?:[^()]|\([^()]*\))*\)\s*|[A-Za-z_]\w*\s+)*?)([A-Za-z_]\w*)\s*(final\b)?\s*([:{;])`)

// declaredName reads the class name from text starting at a class keyword.
// Attributes, alignas/__declspec specifiers and export macros between the
// keyword and the name are skipped.
func declaredName(text string) (string, bool) {
	m := declaredNameRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if m[4] == ";" {
		// forward declaration
		return "", false
	}
	return m[2], true
}

// enclosingBrace returns the offset of the innermost unclosed '{' before at.
func enclosingBrace(code string, at int) int {
	depth := 0
	for i := at - 1; i >= 0; i-- {
		switch code[i] {
		case '}':
			depth++
		case '{':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// statementStart returns the offset just past the last ';', '{' or '}' before
// open, which is where the declaration owning the brace at open begins.
func statementStart(code string, open int) int {
	for i := open - 1; i >= 0; i-- {
		switch code[i] {
		case ';', '{', '}':
			return i + 1
		}
	}
	return 0
}

var namespaceHeadRe = regexp.MustCompile(`\bnamespace\s+([A-Za-z_][\w:]*)\s*$`)

// enclosingScope returns the "::" joined names of the namespaces and classes
// whose braces enclose offset at. Anonymous namespaces and function bodies
// contribute nothing.
func enclosingScope(text, code string, at int) string {
	var stack []string
	start := 0
	for i := 0; i < at && i < len(code); i++ {
		switch code[i] {
		case '{':
			stack = append(stack, scopeName(text[start:i]))
			start = i + 1
		case '}':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			start = i + 1
		case ';':
			start = i + 1
		}
	}
	parts := stack[:0]
	for _, s := range stack {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "::")
}

func scopeName(head string) string {
	if m := namespaceHeadRe.FindStringSubmatch(strings.TrimSpace(head)); m != nil {
		return m[1]
	}
	locs := lastClassRe.FindAllStringIndex(head, -1)
	if locs == nil {
		return ""
	}
	name, _ := declaredName(head[locs[len(locs)-1][0]:] + "{")
	return name
}

// classBody is one class body in the three views of the source.
type classBody struct {
	orig     string
	comments string
	code     string
	line     int // 1-based line of the first body line in the file
}

// isolateBody returns the lines from the class declaration at declAt through
// the line where its brace depth returns to zero. A declaration without an
// opening brace yields no body. An unterminated body runs to the end of the
// file unless a new top-level class or annotation starting right after a
// column-zero closing brace shows where it really ended.
func isolateBody(orig, text, code string, declAt int, classRe *regexp.Regexp) (classBody, bool) {
	origLines := strings.Split(orig, "\n")
	textLines := strings.Split(text, "\n")
	codeLines := strings.Split(code, "\n")

	first := lineOf(orig, declAt) - 1
	col := declAt - lineStart(orig, declAt)

	depth := 0
	started := false
	last := -1
	prevClose := -1
scan:
	for i := first; i < len(codeLines); i++ {
		line := codeLines[i]
		if i == first {
			line = line[col:]
		}
		if started && depth > 0 && prevClose >= 0 && startsTopLevelDecl(textLines[i], classRe) {
			last = prevClose
			break
		}
		for j := 0; j < len(line); j++ {
			switch line[j] {
			case ';':
				if !started {
					return classBody{}, false
				}
			case '{':
				depth++
				started = true
			case '}':
				depth--
				if started && depth <= 0 {
					last = i
					break scan
				}
			}
		}
		switch t := strings.TrimSpace(line); {
		case t == "":
		case strings.HasPrefix(line, "}"):
			prevClose = i
		default:
			prevClose = -1
		}
	}
	if !started {
		return classBody{}, false
	}
	if last < 0 {
		last = len(codeLines) - 1
	}
	join := func(ls []string) string { return strings.Join(ls[first:last+1], "\n") }
	return classBody{
		orig:     join(origLines),
		comments: join(textLines),
		code:     join(codeLines),
		line:     first + 1,
	}, true
}

var topLevelClassRe = regexp.MustCompile(`^(?:class|struct)\s+[A-Za-z_]`)

func startsTopLevelDecl(line string, classRe *regexp.Regexp) bool {
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return false
	}
	if topLevelClassRe.MatchString(line) {
		return true
	}
	loc := classRe.FindStringIndex(line)
	return loc != nil && loc[0] == 0
}

func lineStart(text string, offset int) int {
	return strings.LastIndexByte(text[:offset], '\n') + 1
}
