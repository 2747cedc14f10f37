package extract

import (
	"bytes"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
	cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
)

var (
	cppOnce sync.Once
	cppLang *sitter.Language
)

func cppLanguage() *sitter.Language {
	cppOnce.Do(func() {
		cppLang = sitter.NewLanguage(cpp.Language())
	})
	return cppLang
}

// Masked holds two views of a source text with the same byte length and line
// structure as the original. Comments holds the text with every comment
// blanked; Code additionally blanks string and character literals, which is
// the view brace counting runs on.
type Masked struct {
	Comments []byte
	Code     []byte
}

var literalKinds = map[string]bool{
	"string_literal":     true,
	"raw_string_literal": true,
	"char_literal":       true,
}

// Mask parses src with the tree-sitter C++ grammar and blanks comment and
// literal bytes. Annotation macros make the grammar recover with ERROR nodes,
// but comments and literals are lexed regardless, which is all this needs.
// If parsing fails the unmasked text is returned in both views.
func Mask(src []byte) Masked {
	m := Masked{Comments: bytes.Clone(src), Code: bytes.Clone(src)}
	if len(src) == 0 {
		return m
	}

	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(cppLanguage()); err != nil {
		return m
	}

	tree := parser.Parse(src, nil)
	if tree == nil {
		return m
	}
	defer tree.Close()

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		kind := n.Kind()
		switch {
		case kind == "comment":
			blank(m.Comments, n.StartByte(), n.EndByte())
			blank(m.Code, n.StartByte(), n.EndByte())
			return
		case literalKinds[kind]:
			blank(m.Code, n.StartByte(), n.EndByte())
			return
		}
		for i := range n.ChildCount() {
			if child := n.Child(i); child != nil {
				walk(child)
			}
		}
	}
	walk(tree.RootNode())
	return m
}

// blank replaces buf[start:end] with spaces, keeping line breaks so that
// offsets and line numbers stay aligned with the original text.
func blank(buf []byte, start, end uint) {
	if end > uint(len(buf)) {
		end = uint(len(buf))
	}
	for i := start; i < end; i++ {
		if buf[i] != '\n' && buf[i] != '\r' {
			buf[i] = ' '
		}
	}
}
