package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

const nestedParams = `std::map<int, std::string> m, int (*cb)(int, int), const std::string& name = "a,b"`

func TestSplitParams(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"nested commas", nestedParams, []string{
			"std::map<int, std::string> m",
			"int (*cb)(int, int)",
			`const std::string& name = "a,b"`,
		}},
		{"escaped quotes", `int a, const char* s = "x\",y", char c = ','`, []string{
			"int a",
			`const char* s = "x\",y"`,
			"char c = ','",
		}},
		{"brace initialiser", "std::array<int, 3> a = {1, 2}, int b", []string{
			"std::array<int, 3> a = {1, 2}",
			"int b",
		}},
		{"comparison in default", "int a = x < y, int b", []string{
			"int a = x < y",
			"int b",
		}},
		{"template in default", "std::pair<int, int> p = std::pair<int, int>(1, 2), bool ok = a<=b", []string{
			"std::pair<int, int> p = std::pair<int, int>(1, 2)",
			"bool ok = a<=b",
		}},
		{"empty", "", nil},
		{"only separators", " , ", nil},
		{"void", "void", []string{"void"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, SplitParams(tt.raw)); diff != "" {
				t.Errorf("SplitParams(%q) (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestParamName(t *testing.T) {
	tests := []struct {
		param string
		want  string
	}{
		{"std::map<int, std::string> m", "m"},
		{"int (*cb)(int, int)", "cb"},
		{`const std::string& name = "a,b"`, "name"},
		{"void (Foo::*handler)(int)", "handler"},
		{"int (&arr)[3]", "arr"},
		{"std::function<bool(int, int)> pred = {}", "pred"},
		{"bool flag = a >= b", "flag"},
		{"int x = (a == b)", "x"},
		{"Foo const& other", "other"},
		{"std::vector<int>values", "values"},
		{"Foo*p", "p"},
		{"int values[]", "values"},
		{"Args&&... args", "args"},
		{"const Foo&", ""},
		{"std::vector<int>", ""},
		{"int", ""},
		{"unsigned int", ""},
		{"const int", ""},
		{"...", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ParamName(tt.param); got != tt.want {
			t.Errorf("ParamName(%q) = %q, want %q", tt.param, got, tt.want)
		}
	}
}

func TestParamNames(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{nestedParams, []string{"m", "cb", "name"}},
		{"void", []string{}},
		{"", []string{}},
		{"int, float f", []string{"f"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, ParamNames(tt.raw)); diff != "" {
			t.Errorf("ParamNames(%q) (-want +got):\n%s", tt.raw, diff)
		}
	}
}
