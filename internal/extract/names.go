package extract

import (
	"fmt"
	"regexp"
)

// Names are the annotation macro names the extractor looks for.
type Names struct {
	Class    string `yaml:"class" json:"class"`
	Property string `yaml:"property" json:"property"`
	Method   string `yaml:"method" json:"method"`
	Function string `yaml:"function" json:"function"`
	Factory  string `yaml:"factory" json:"factory"`
}

// DefaultNames returns the stock Helianthus macro names.
func DefaultNames() Names {
	return Names{
		Class:    "HCLASS",
		Property: "HPROPERTY",
		Method:   "HMETHOD",
		Function: "HFUNCTION",
		Factory:  "HRPC_FACTORY",
	}
}

var identRe = regexp.MustCompile(`^[A-Za-z_]\w*$`)

// Validate checks that every name is a C identifier.
func (n Names) Validate() error {
	for _, f := range []struct{ field, v string }{
		{"class", n.Class},
		{"property", n.Property},
		{"method", n.Method},
		{"function", n.Function},
		{"factory", n.Factory},
	} {
		if !identRe.MatchString(f.v) {
			return fmt.Errorf("annotation %s: %q is not an identifier", f.field, f.v)
		}
	}
	return nil
}

// macroRe matches "NAME(" with optional whitespace before the parenthesis,
// leaving the match end just past the opening parenthesis.
func macroRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\s*\(`)
}
