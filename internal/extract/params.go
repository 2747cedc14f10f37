package extract

import (
	"regexp"
	"strings"
)

// SplitParams splits a raw parameter list on top-level commas. Commas nested
// in angle brackets, parentheses, braces or literals do not split. Inside a
// default value a '<' only opens template arguments when it directly follows
// an identifier, so "int a = x < y, int b" still splits. Parts are trimmed
// and empty parts dropped.
func SplitParams(raw string) []string {
	var (
		parts     []string
		q         quotes
		n         = nesting{angles: true}
		start     int
		inDefault bool
	)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if q.step(c) {
			continue
		}
		if n.top() {
			switch {
			case c == ',':
				parts = appendPart(parts, raw[start:i])
				start = i + 1
				inDefault = false
				n.angles = true
				continue
			case c == '=' && isAssignment(raw, i):
				inDefault = true
				n.angles = false
			}
		}
		if inDefault && c == '<' && i > 0 && isIdentByte(raw[i-1]) && !(i+1 < len(raw) && raw[i+1] == '=') {
			n.angle++
			continue
		}
		if inDefault && c == '>' && n.angle > 0 {
			n.angle--
			continue
		}
		n.step(c)
	}
	return appendPart(parts, raw[start:])
}

// isAssignment reports whether the '=' at i is a plain assignment rather than
// part of ==, !=, <= or >=.
func isAssignment(s string, i int) bool {
	if i > 0 && strings.IndexByte("=!<>", s[i-1]) >= 0 {
		return false
	}
	return i+1 >= len(s) || s[i+1] != '='
}

func appendPart(parts []string, p string) []string {
	if p = strings.TrimSpace(p); p != "" {
		parts = append(parts, p)
	}
	return parts
}

var (
	// int (*cb)(int), void (Foo::*fn)(), int (&arr)[3]
	funcPtrRe = regexp.MustCompile(`\(\s*(?:[A-Za-z_][\w:<>]*\s*::\s*)?[*&]+\s*(?:const\s+)?([A-Za-z_]\w*)\s*\)`)
	arrayRe   = regexp.MustCompile(`\[[^\]]*\]`)
	gluedRe   = regexp.MustCompile(`[>)&*]\s*([A-Za-z_]\w*)\s*$`)

	sigils = strings.NewReplacer("...", " ", "&&", " ", "&", " ", "*", " ")
)

// builtinTypeWords can never be a parameter name; a declaration ending in one
// of them has no name.
var builtinTypeWords = map[string]bool{
	"void": true, "bool": true, "char": true, "wchar_t": true,
	"char8_t": true, "char16_t": true, "char32_t": true,
	"short": true, "int": true, "long": true, "float": true, "double": true,
	"signed": true, "unsigned": true, "auto": true,
	"const": true, "volatile": true, "struct": true, "class": true,
	"enum": true, "typename": true,
}

// ParamName recovers the declared name of one parameter, or "" when the
// parameter is unnamed. Default values are discarded first, function
// pointer names are taken from their declarator, and otherwise the last
// identifier wins unless it is a builtin type word.
func ParamName(param string) string {
	p := strings.TrimSpace(param)
	if p == "" || p == "..." {
		return ""
	}
	if eq := defaultValueIndex(p); eq >= 0 {
		p = strings.TrimSpace(p[:eq])
	}
	if p == "" {
		return ""
	}
	if m := funcPtrRe.FindStringSubmatch(p); m != nil {
		return m[1]
	}
	if strings.IndexByte("&*>", p[len(p)-1]) >= 0 {
		return ""
	}

	p = arrayRe.ReplaceAllString(p, " ")
	tokens := strings.Fields(sigils.Replace(p))
	if len(tokens) >= 2 {
		last := tokens[len(tokens)-1]
		if identRe.MatchString(last) && !builtinTypeWords[last] {
			return last
		}
	}
	// A name glued to the type, as in "std::vector<int>values" or "Foo*p".
	if m := gluedRe.FindStringSubmatch(p); m != nil && !builtinTypeWords[m[1]] {
		return m[1]
	}
	return ""
}

// defaultValueIndex finds the '=' introducing a default argument, ignoring
// comparison operators and anything nested.
func defaultValueIndex(p string) int {
	from := 0
	for {
		i := indexTopLevel(p, from, true, func(c byte) bool { return c == '=' })
		if i < 0 {
			return -1
		}
		prevOp := i > 0 && strings.IndexByte("=!<>", p[i-1]) >= 0
		nextEq := i+1 < len(p) && p[i+1] == '='
		if !prevOp && !nextEq {
			return i
		}
		from = i + 1
		if nextEq {
			from++
		}
	}
}

// ParamNames maps a raw parameter list to the names of its named parameters
// in declaration order. Unnamed parameters are left out and a lone "void" is
// an empty list.
func ParamNames(raw string) []string {
	parts := SplitParams(raw)
	names := make([]string, 0, len(parts))
	if len(parts) == 1 && parts[0] == "void" {
		return names
	}
	for _, p := range parts {
		if name := ParamName(p); name != "" {
			names = append(names, name)
		}
	}
	return names
}
