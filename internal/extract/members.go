package extract

import (
	"regexp"
	"strings"

	"github.com/helianthus/reflectgen/internal/model"
)

// members fills the properties, methods and functions of decl from its body.
// Every miss degrades to skipping the member or leaving a field empty.
func (e *Extractor) members(b classBody, decl *model.ClassDecl) {
	text := b.comments
	lines := strings.Split(b.orig, "\n")

	for _, loc := range e.propertyRe.FindAllStringIndex(text, -1) {
		raw, end, ok := macroArgs(text, loc[1])
		if !ok {
			continue
		}
		stop := indexTopLevel(text, end, false, func(c byte) bool { return c == ';' || c == '}' })
		if stop < 0 {
			continue
		}
		if name := propertyName(text[end:stop]); name != "" {
			decl.Properties = append(decl.Properties, model.PropertyRecord{
				Tag:  strings.TrimSpace(raw),
				Name: name,
			})
		}
	}

	for _, loc := range e.methodRe.FindAllStringIndex(text, -1) {
		raw, end, ok := macroArgs(text, loc[1])
		if !ok {
			continue
		}
		sig, ok := parseSignature(text, end)
		if !ok {
			continue
		}
		rawTag := strings.TrimSpace(raw)
		tags := model.ParseTags(rawTag)
		ret := CleanReturnType(sig.prefix)
		if ret == "auto" {
			if t := TrailingReturnType(sig.suffix); t != "" {
				ret = t
			}
		}
		decl.Methods = append(decl.Methods, model.MethodRecord{
			RawTag:      rawTag,
			Name:        sig.name,
			Params:      ParamNames(sig.params),
			ReturnType:  ret,
			Tags:        tags,
			Description: DocComment(lines, lineOf(text, loc[0])-1),
			Qualifiers:  InferQualifiers(sig.prefix, sig.suffix, tags),
		})
	}

	for _, loc := range e.functionRe.FindAllStringIndex(text, -1) {
		_, end, ok := macroArgs(text, loc[1])
		if !ok {
			continue
		}
		if sig, ok := parseSignature(text, end); ok {
			decl.Functions = append(decl.Functions, sig.name)
		}
	}
}

var trailingIdentRe = regexp.MustCompile(`([A-Za-z_]\w*)\s*$`)

// propertyName returns the member name of a data member declaration with any
// initialiser, array extent or bit-field width removed.
func propertyName(decl string) string {
	d := decl
	if i := defaultValueIndex(d); i >= 0 {
		d = d[:i]
	}
	if i := indexTopLevel(d, 0, true, func(c byte) bool { return c == '{' }); i >= 0 {
		d = d[:i]
	}
	if i := bitfieldColon(d); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimSpace(arrayRe.ReplaceAllString(d, " "))
	m := trailingIdentRe.FindStringSubmatch(d)
	if m == nil || builtinTypeWords[m[1]] || len(strings.Fields(d)) < 2 && !strings.ContainsAny(d, "*&>") {
		return ""
	}
	return m[1]
}

func bitfieldColon(d string) int {
	for i := 0; i < len(d); i++ {
		if d[i] != ':' {
			continue
		}
		if i+1 < len(d) && d[i+1] == ':' {
			i++
			continue
		}
		return i
	}
	return -1
}

var operatorRe = regexp.MustCompile(`\boperator\b`)

// signature is a method declaration split around its name and parameters.
type signature struct {
	prefix string // between the annotation and the name
	name   string
	params string // inside the parentheses
	suffix string // after the parameters up to ';' or '{'
}

// parseSignature reads the declaration that starts at from. The name is the
// identifier before the first parenthesis outside template arguments and
// attributes.
func parseSignature(text string, from int) (signature, bool) {
	paren := indexTopLevel(text, from, true, func(c byte) bool {
		return c == '(' || c == ';' || c == '{' || c == '}'
	})
	if paren < 0 || text[paren] != '(' {
		return signature{}, false
	}

	nameEnd := paren
	for nameEnd > from && isSpace(text[nameEnd-1]) {
		nameEnd--
	}
	nameStart := nameEnd
	for nameStart > from && (isIdentByte(text[nameStart-1]) || text[nameStart-1] == '~') {
		nameStart--
	}
	name := text[nameStart:nameEnd]
	if !identRe.MatchString(strings.TrimPrefix(name, "~")) || name == "operator" {
		return signature{}, false
	}
	// Conversion operators such as "operator bool()" have no registrable name.
	if operatorRe.MatchString(text[from:nameStart]) {
		return signature{}, false
	}

	closeIdx, ok := closingParen(text, paren)
	if !ok {
		return signature{}, false
	}
	end := indexTopLevel(text, closeIdx+1, false, func(c byte) bool {
		return c == ';' || c == '{' || c == '}'
	})
	if end < 0 {
		end = len(text)
	}
	return signature{
		prefix: text[from:nameStart],
		name:   name,
		params: text[paren+1 : closeIdx],
		suffix: strings.TrimSpace(text[closeIdx+1 : end]),
	}, true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
