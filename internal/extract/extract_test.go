package extract

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/tools/txtar"

	"github.com/helianthus/reflectgen/internal/model"
)

func loadFixtures(t *testing.T) map[string][]byte {
	t.Helper()
	ar, err := txtar.ParseFile("testdata/classes.txtar")
	if err != nil {
		t.Fatalf("reading fixtures: %v", err)
	}
	files := make(map[string][]byte, len(ar.Files))
	for _, f := range ar.Files {
		files[f.Name] = f.Data
	}
	return files
}

func extractFixture(t *testing.T, name string) []model.ClassDecl {
	t.Helper()
	src, ok := loadFixtures(t)[name]
	if !ok {
		t.Fatalf("fixture %s missing", name)
	}
	return New(DefaultNames()).File(src)
}

func TestFileAnnotationBeforeClass(t *testing.T) {
	src := loadFixtures(t)["Services/UserService.h"]
	classes := New(DefaultNames()).File(src)
	if len(classes) != 1 {
		t.Fatalf("expected 1 class (commented ones ignored), got %d", len(classes))
	}
	c := classes[0]

	if c.Name != "UserService" {
		t.Errorf("name = %q", c.Name)
	}
	if c.RawTags != "RpcService|Game" {
		t.Errorf("raw tags = %q", c.RawTags)
	}
	if !c.HasFactory {
		t.Error("factory marker not detected")
	}
	wantLine := strings.Count(string(src[:strings.Index(string(src), "class GAME_API")]), "\n") + 1
	if c.Line != wantLine {
		t.Errorf("line = %d, want %d", c.Line, wantLine)
	}
	if strings.Contains(c.Body, "HCLASS(Ghost)") {
		t.Error("body should start at the class declaration")
	}

	wantProps := []model.PropertyRecord{
		{Tag: "ScriptReadable", Name: "Level"},
		{Tag: "SaveGame", Name: "Names"},
	}
	if diff := cmp.Diff(wantProps, c.Properties); diff != "" {
		t.Errorf("properties (-want +got):\n%s", diff)
	}

	wantMethods := []model.MethodRecord{
		{
			RawTag:      "Rpc|Const|Deprecated",
			Name:        "GetUser",
			Params:      []string{"Id", "Filter"},
			ReturnType:  "std::string",
			Tags:        []string{"Rpc", "Const", "Deprecated"},
			Description: "Looks up a user. Returns empty when unknown.",
			Qualifiers: model.Qualifiers{
				IsConst: true, IsNoexcept: true, IsDeprecated: true,
				Access: model.AccessPublic,
			},
		},
		{
			RawTag:     "Admin, Private",
			Name:       "DeleteUser",
			Params:     []string{"Reasons", "Note"},
			ReturnType: "void",
			Tags:       []string{"Admin", "Private"},
			Qualifiers: model.Qualifiers{
				IsVirtual: true, IsOverride: true,
				Access: model.AccessPrivate,
			},
		},
		{
			RawTag:     "Rpc",
			Name:       "ListUsers",
			Params:     []string{},
			ReturnType: "std::vector<std::pair<int,std::string>>",
			Tags:       []string{"Rpc"},
			Qualifiers: model.Qualifiers{IsStatic: true, Access: model.AccessPublic},
		},
	}
	if diff := cmp.Diff(wantMethods, c.Methods, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("methods (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Create"}, c.Functions); diff != "" {
		t.Errorf("functions (-want +got):\n%s", diff)
	}
}

func TestFileAnnotationInsideBody(t *testing.T) {
	classes := extractFixture(t, "Game/Inventory.hpp")
	if len(classes) != 1 {
		t.Fatalf("expected 1 class (forward declaration dropped), got %d", len(classes))
	}
	c := classes[0]
	if c.Name != "Inventory" || c.RawTags != "Scriptable" {
		t.Errorf("got %s(%s)", c.Name, c.RawTags)
	}
	if c.Line != 2 {
		t.Errorf("line = %d, want 2", c.Line)
	}
	if c.Scope != "Game" {
		t.Errorf("scope = %q, want Game", c.Scope)
	}
	if c.HasFactory {
		t.Error("unexpected factory marker")
	}
	if strings.Contains(c.Body, "Forward") {
		t.Error("body ran past the closing brace")
	}

	wantProps := []model.PropertyRecord{
		{Tag: "Visible", Name: "Weight"},
		{Tag: "Visible", Name: "Slots"},
	}
	if diff := cmp.Diff(wantProps, c.Properties); diff != "" {
		t.Errorf("properties (-want +got):\n%s", diff)
	}
	if len(c.Methods) != 1 {
		t.Fatalf("methods = %+v", c.Methods)
	}
	m := c.Methods[0]
	if m.ReturnType != "double" {
		t.Errorf("trailing return type = %q", m.ReturnType)
	}
	if !m.Qualifiers.IsPureFunction || !m.Qualifiers.IsConst {
		t.Errorf("qualifiers = %+v", m.Qualifiers)
	}
}

func TestFileRunawayBody(t *testing.T) {
	classes := extractFixture(t, "Net/Runaway.cpp")
	if len(classes) != 2 {
		t.Fatalf("expected 2 classes, got %d", len(classes))
	}
	var names [][]string
	for _, c := range classes {
		row := []string{c.Name}
		for _, m := range c.Methods {
			row = append(row, m.Name)
		}
		names = append(names, row)
	}
	want := [][]string{{"Unbalanced", "F"}, {"Next", "G"}}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("classes and methods (-want +got):\n%s", diff)
	}
}

func TestFileFactoryInCommentIgnored(t *testing.T) {
	classes := extractFixture(t, "Net/NoFactory.h")
	if len(classes) != 1 {
		t.Fatalf("got %d classes", len(classes))
	}
	if classes[0].HasFactory {
		t.Error("factory marker inside a comment must not count")
	}
	if got := classes[0].Methods[0].Params; len(got) != 0 {
		t.Errorf("type-only parameter produced names %v", got)
	}
}

func TestFileCustomNames(t *testing.T) {
	src := []byte(`
UCLASS(Blueprint)
class Actor {
    UPROPERTY(Edit) int Health;
    HPROPERTY(Edit) int Ignored;
    UFUNCTION(Rpc) void Jump(float Height);
};
`)
	names := Names{Class: "UCLASS", Property: "UPROPERTY", Method: "UFUNCTION", Function: "USTATIC", Factory: "UFACTORY"}
	classes := New(names).File(src)
	if len(classes) != 1 {
		t.Fatalf("got %d classes", len(classes))
	}
	c := classes[0]
	if len(c.Properties) != 1 || c.Properties[0].Name != "Health" {
		t.Errorf("properties = %+v", c.Properties)
	}
	if len(c.Methods) != 1 || c.Methods[0].Name != "Jump" {
		t.Errorf("methods = %+v", c.Methods)
	}
}

func TestFileScope(t *testing.T) {
	src := []byte(`namespace Helianthus::Game {
namespace {
void Helper() { int x = 0; }
}
inline namespace V1 {
class Outer {
public:
    HCLASS(Nested)
    struct Inner { HPROPERTY(A) int X; };
};
}
}

HCLASS(Global)
class Loose {};
`)
	classes := New(DefaultNames()).File(src)
	got := make(map[string]string)
	for _, c := range classes {
		got[c.Name] = c.Scope
	}
	want := map[string]string{"Inner": "Helianthus::Game::V1::Outer", "Loose": ""}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("scopes (-want +got):\n%s", diff)
	}
}

func TestFileNoBody(t *testing.T) {
	for _, src := range []string{
		"",
		"HCLASS(X)",
		"HCLASS(X) class",
		"HCLASS(X class Foo {};",
		"HCLASS(X) class Foo",
		"HCLASS(X) class Foo;",
	} {
		if got := New(DefaultNames()).File([]byte(src)); len(got) != 0 {
			t.Errorf("File(%q) = %+v, want nothing", src, got)
		}
	}
}

func TestFileDuplicateAnnotation(t *testing.T) {
	src := []byte(`HCLASS(A)
class Twice {
    HCLASS(B)
};
`)
	classes := New(DefaultNames()).File(src)
	if len(classes) != 1 || classes[0].RawTags != "A" {
		t.Errorf("got %+v", classes)
	}
}

func TestNamesValidate(t *testing.T) {
	if err := DefaultNames().Validate(); err != nil {
		t.Fatalf("default names invalid: %v", err)
	}
	bad := DefaultNames()
	bad.Method = "H METHOD"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for non-identifier macro name")
	}
}

func TestFileSpecifiersBeforeName(t *testing.T) {
	src := []byte(`HCLASS(Aligned)
class alignas(8) Packet {
    HMETHOD() operator bool() const;
    HMETHOD(Rpc) int Size() const;
};

HCLASS(Exported)
struct __declspec(dllexport) Exported final {};
`)
	classes := New(DefaultNames()).File(src)
	var names []string
	for _, c := range classes {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"Packet", "Exported"}, names); diff != "" {
		t.Fatalf("classes (-want +got):\n%s", diff)
	}
	methods := classes[0].Methods
	if len(methods) != 1 || methods[0].Name != "Size" {
		t.Errorf("conversion operator must be skipped, got %+v", methods)
	}
}
