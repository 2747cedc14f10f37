package extract

type lexState uint8

const (
	inCode lexState = iota
	inDouble
	inSingle
)

// quotes tracks whether the scan position is inside a string or character
// literal, honouring backslash escapes.
type quotes struct {
	state   lexState
	escaped bool
}

// step consumes c and reports whether it belongs to a literal, delimiters
// included.
func (q *quotes) step(c byte) bool {
	if q.state == inCode {
		switch c {
		case '"':
			q.state = inDouble
			return true
		case '\'':
			q.state = inSingle
			return true
		}
		return false
	}
	if q.escaped {
		q.escaped = false
		return true
	}
	switch {
	case c == '\\':
		q.escaped = true
	case q.state == inDouble && c == '"', q.state == inSingle && c == '\'':
		q.state = inCode
	}
	return true
}

// nesting counts open brackets. Angle brackets are only tracked when angles
// is set because '<' and '>' are also comparison operators.
type nesting struct {
	paren, brace, bracket, angle int
	angles                       bool
}

func (n *nesting) step(c byte) {
	switch c {
	case '(':
		n.paren++
	case ')':
		if n.paren > 0 {
			n.paren--
		}
	case '{':
		n.brace++
	case '}':
		if n.brace > 0 {
			n.brace--
		}
	case '[':
		n.bracket++
	case ']':
		if n.bracket > 0 {
			n.bracket--
		}
	case '<':
		if n.angles {
			n.angle++
		}
	case '>':
		if n.angles && n.angle > 0 {
			n.angle--
		}
	}
}

func (n *nesting) top() bool {
	return n.paren == 0 && n.brace == 0 && n.bracket == 0 && n.angle == 0
}

// closingParen returns the index of the parenthesis matching the one at open,
// skipping parentheses inside literals.
func closingParen(text string, open int) (int, bool) {
	var q quotes
	depth := 0
	for i := open; i < len(text); i++ {
		c := text[i]
		if q.step(c) {
			continue
		}
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return -1, false
}

// macroArgs returns the argument text of a macro invocation whose opening
// parenthesis is the last byte before argStart, plus the index just past the
// closing parenthesis.
func macroArgs(text string, argStart int) (args string, end int, ok bool) {
	open := argStart - 1
	closeIdx, ok := closingParen(text, open)
	if !ok {
		return "", 0, false
	}
	return text[open+1 : closeIdx], closeIdx + 1, true
}

// indexTopLevel returns the first index at or after from where stop(c) holds
// outside literals and with no open bracket, or -1.
func indexTopLevel(text string, from int, angles bool, stop func(c byte) bool) int {
	var q quotes
	n := nesting{angles: angles}
	for i := from; i < len(text); i++ {
		c := text[i]
		if q.step(c) {
			continue
		}
		if n.top() && stop(c) {
			return i
		}
		n.step(c)
	}
	return -1
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func lineOf(text string, offset int) int {
	line := 1
	for i := 0; i < offset && i < len(text); i++ {
		if text[i] == '\n' {
			line++
		}
	}
	return line
}
