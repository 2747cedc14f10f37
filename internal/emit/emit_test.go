package emit

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/helianthus/reflectgen/internal/model"
)

func userService() model.ClassRecord {
	return model.ClassRecord{
		Name:       "UserService",
		Scope:      "Game",
		Tags:       []string{"RpcService", "Game"},
		Properties: []model.PropertyRecord{{Tag: "ScriptReadable", Name: "Level"}},
		Methods: []model.MethodRecord{
			{
				RawTag:      "Rpc|Const|Deprecated",
				Name:        "GetUser",
				Params:      []string{"Id"},
				ReturnType:  "std::string",
				Tags:        []string{"Rpc", "Const", "Deprecated"},
				Description: `Looks up a "user".`,
				Qualifiers: model.Qualifiers{
					IsConst: true, IsDeprecated: true, Access: model.AccessPublic,
				},
			},
			{RawTag: "Admin", Name: "GetUser", Tags: []string{"Admin"}, Qualifiers: model.Qualifiers{Access: model.AccessPublic}},
		},
		Functions:    []string{"Create"},
		HasFactory:   true,
		HeaderMode:   true,
		SourceFile:   "Services/UserService.h",
		OutputSubdir: "Services",
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", `"plain"`},
		{`a "b" \c`, `"a \"b\" \\c"`},
		{"line\nbreak\ttab", `"line\nbreak\ttab"`},
		{"bell\a1", `"bell\0071"`},
		{"what??!", `"what\??!"`},
		{"", `""`},
	}
	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.want {
			t.Errorf("Quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFragmentPaths(t *testing.T) {
	c := userService()
	if got := RegistrationPath(&c); got != "classes/Services/UserService_registration.cpp" {
		t.Errorf("registration path = %s", got)
	}
	c.OutputSubdir = ""
	if got := ServicesPath(&c); got != "classes/UserService_services.cpp" {
		t.Errorf("services path = %s", got)
	}
}

func TestRegistrationHeaderMode(t *testing.T) {
	c := userService()
	out := string(Registration(&c, Options{IncludePrefix: "Src"}).Content)

	for _, want := range []string{
		`#include "Src/Services/UserService.h"`,
		"void RegisterClass_UserService()",
		`Registry.RegisterClass("UserService", {}, nullptr);`,
		`Registry.AddClassTag("UserService", "RpcService");`,
		`Registry.AddClassTag("UserService", "Game");`,
		`Registry.RegisterProperty("UserService", "Level", "ScriptReadable", offsetof(::Game::UserService, Level), sizeof(static_cast<::Game::UserService*>(nullptr)->Level));`,
		`"UserService", "GetUser", {"Rpc", "Deprecated"},`,
		`"std::string", "Public", "Looks up a \"user\".",`,
		`/*IsStatic*/ false, {"Id"},`,
		`/*IsPureFunction*/ false, /*IsConst*/ true, /*IsNoexcept*/ false,`,
		`/*IsInline*/ false, /*IsDeprecated*/ true, {});`,
		`"UserService", "Create", {"Function"},`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("registration missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, `"Const"`) {
		t.Errorf("structural tag forwarded as a business tag\n%s", out)
	}
}

func TestRegistrationTranslationUnit(t *testing.T) {
	c := userService()
	c.HeaderMode = false
	c.SourceFile = "Services/UserService.cpp"
	out := string(Registration(&c, DefaultOptions()).Content)

	if !strings.Contains(out, `Registry.RegisterProperty("UserService", "Level", "ScriptReadable", 0, 0);`) {
		t.Errorf("translation unit classes must register zero offset and size\n%s", out)
	}
	if strings.Contains(out, "offsetof") || strings.Contains(out, `#include "Services/UserService.cpp"`) {
		t.Errorf("translation unit class must not be included or measured\n%s", out)
	}
}

func TestServices(t *testing.T) {
	c := userService()
	out := string(Services(&c, DefaultOptions()).Content)

	for _, want := range []string{
		`#include "Services/UserService.h"`,
		"void RegisterRpc_UserService()",
		`if (!Services.HasService("UserService"))`,
		`"1.0.0",`,
		"std::make_shared<::Game::UserService>()",
		`Meta.MethodName = "GetUser";`,
		`Meta.Category = "ReflectedRpc";`,
		`Meta.Tags = {"Rpc", "Deprecated"};`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("services missing %q\n%s", want, out)
		}
	}
	if n := strings.Count(out, "Meta.MethodName"); n != 1 {
		t.Errorf("repeated method name registered %d times", n)
	}
	if strings.Contains(out, `{"Admin"}`) {
		t.Error("second declaration of a method name must be dropped")
	}
}

func TestServicesFactoryPlaceholder(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.ClassRecord)
	}{
		{"no factory marker", func(c *model.ClassRecord) { c.HasFactory = false }},
		{"translation unit", func(c *model.ClassRecord) { c.HeaderMode = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := userService()
			tt.mutate(&c)
			out := string(Services(&c, DefaultOptions()).Content)
			if !strings.Contains(out, "return std::shared_ptr<Helianthus::RPC::IRpcService>();") {
				t.Errorf("expected null factory\n%s", out)
			}
			if strings.Contains(out, "make_shared") {
				t.Errorf("unexpected instance factory\n%s", out)
			}
		})
	}
}

func TestServicesOptOut(t *testing.T) {
	optedOut := userService()
	optedOut.Tags = append(optedOut.Tags, DefaultOptOutTag)

	skipAll := DefaultOptions()
	skipAll.SkipAutoRegister = true

	for name, tc := range map[string]struct {
		c    model.ClassRecord
		opts Options
	}{
		"opt-out tag":        {optedOut, DefaultOptions()},
		"skip auto register": {userService(), skipAll},
	} {
		t.Run(name, func(t *testing.T) {
			out := string(Services(&tc.c, tc.opts).Content)
			if strings.Contains(out, "RegisterService(") {
				t.Errorf("opted-out class registered a factory\n%s", out)
			}
			if !strings.Contains(out, "void RegisterRpc_UserService()") || !strings.Contains(out, `Meta.MethodName = "GetUser";`) {
				t.Errorf("opted-out class must keep its method metadata\n%s", out)
			}
		})
	}
}

func TestFragmentsDeterministic(t *testing.T) {
	c := userService()
	a := Fragments(&c, DefaultOptions())
	b := Fragments(&c, DefaultOptions())
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("fragments differ between runs:\n%s", diff)
	}
}
