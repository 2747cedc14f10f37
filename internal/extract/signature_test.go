package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/helianthus/reflectgen/internal/model"
)

func TestCleanReturnType(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"const std::vector<std::pair<int, std::string>>&", "std::vector<std::pair<int,std::string>>"},
		{"static inline int", "int"},
		{"[[nodiscard]] virtual bool", "bool"},
		{"template <typename T> T", "T"},
		{"const char*", "char"},
		{"std :: string", "std::string"},
		{"std::map<int, std::string> const &", "std::map<int,std::string>"},
		{"unsigned long long", "unsigned long long"},
		{"const_iterator", "const_iterator"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanReturnType(tt.in); got != tt.want {
			t.Errorf("CleanReturnType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInferQualifiers(t *testing.T) {
	pub := model.AccessPublic
	tests := []struct {
		name           string
		prefix, suffix string
		tags           []string
		want           model.Qualifiers
	}{
		{"virtual const override", "virtual void ", "const override", []string{"Rpc"},
			model.Qualifiers{IsVirtual: true, IsConst: true, IsOverride: true, Access: pub}},
		{"tags only", "", "", []string{"Rpc", "Const", "Deprecated"},
			model.Qualifiers{IsConst: true, IsDeprecated: true, Access: pub}},
		{"static inline noexcept", "static inline int ", "noexcept(true)", nil,
			model.Qualifiers{IsStatic: true, IsInline: true, IsNoexcept: true, Access: pub}},
		{"deprecated attribute", `[[deprecated("use Other")]] explicit `, "", nil,
			model.Qualifiers{IsDeprecated: true, Access: pub, Other: []string{"explicit"}}},
		{"pure virtual", "virtual int ", "const = 0", nil,
			model.Qualifiers{IsVirtual: true, IsConst: true, Access: pub, Other: []string{"abstract"}}},
		{"deleted", "", "= delete", nil,
			model.Qualifiers{Access: pub, Other: []string{"deleted"}}},
		{"initialiser list", "", ": Base(x), Value(const_cast<int&>(y))", nil,
			model.Qualifiers{Access: pub}},
		{"trailing return", "auto ", "-> const Foo& override", nil,
			model.Qualifiers{IsOverride: true, Access: pub}},
		{"first access tag wins", "", "", []string{"Protected", "Private"},
			model.Qualifiers{Access: model.AccessProtected}},
		{"structural tags", "", "final", []string{"virtual", "PureFunction"},
			model.Qualifiers{IsVirtual: true, IsFinal: true, IsPureFunction: true, Access: pub}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InferQualifiers(tt.prefix, tt.suffix, tt.tags)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("InferQualifiers (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTrailingReturnType(t *testing.T) {
	if got := TrailingReturnType("const -> std::vector<int> override"); got != "std::vector<int>" {
		t.Errorf("got %q", got)
	}
	if got := TrailingReturnType("const noexcept"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestDocComment(t *testing.T) {
	lines := []string{
		"int x;",
		"// First",
		"",
		"/// Second",
		"/*! Third */",
		"HMETHOD(Rpc)",
		"/* open",
		" close */",
		"HMETHOD(Rpc)",
	}
	tests := []struct {
		idx  int
		want string
	}{
		{5, "First Second Third"},
		{1, ""},
		{0, ""},
		{8, ""},
	}
	for _, tt := range tests {
		if got := DocComment(lines, tt.idx); got != tt.want {
			t.Errorf("DocComment(%d) = %q, want %q", tt.idx, got, tt.want)
		}
	}
}
