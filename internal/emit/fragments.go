package emit

import (
	"github.com/helianthus/reflectgen/internal/model"
)

// Registration renders classes/<subdir>/<Name>_registration.cpp, which
// defines RegisterClass_<Name>. Property offsets and sizes are only taken
// when the class lives in a header the fragment can include.
func Registration(c *model.ClassRecord, opts Options) File {
	var w writer
	w.line(generatedBanner)
	w.line("// Source: %s", c.SourceFile)
	w.line("")
	w.line(`#include "Shared/Reflection/ReflectionCore.h"`)
	if c.HeaderMode {
		w.line("#include %s", Quote(includePath(c, opts)))
	}
	w.line("")
	w.line("#include <cstddef>")
	w.line("")
	w.line("namespace Helianthus::Reflection")
	w.line("{")
	w.open("void RegisterClass_%s()", c.Name)
	w.line("auto& Registry = ClassRegistry::Get();")
	name := Quote(c.Name)
	w.line("Registry.RegisterClass(%s, {}, nullptr);", name)
	for _, tag := range c.Tags {
		w.line("Registry.AddClassTag(%s, %s);", name, Quote(tag))
	}

	for _, p := range c.Properties {
		offset, size := "0", "0"
		if c.HeaderMode {
			qn := c.QualifiedName()
			offset = "offsetof(" + qn + ", " + p.Name + ")"
			size = "sizeof(static_cast<" + qn + "*>(nullptr)->" + p.Name + ")"
		}
		w.line("Registry.RegisterProperty(%s, %s, %s, %s, %s);", name, Quote(p.Name), Quote(p.Tag), offset, size)
	}

	for i := range c.Methods {
		writeMethod(&w, name, &c.Methods[i])
	}
	for _, fn := range c.Functions {
		writeFunction(&w, name, fn)
	}
	w.close("")
	w.line("} // namespace Helianthus::Reflection")
	return File{Path: RegistrationPath(c), Content: w.bytes()}
}

func writeMethod(w *writer, class string, m *model.MethodRecord) {
	q := m.Qualifiers
	w.line("Registry.RegisterMethodFull(")
	w.indent++
	w.line("%s, %s, %s,", class, Quote(m.Name), stringList(m.BusinessTags()))
	w.line("%s, %s, %s,", Quote(m.ReturnType), Quote(string(q.Access)), Quote(m.Description))
	w.line("/*IsStatic*/ %s, %s,", cppBool(q.IsStatic), stringList(m.Params))
	w.line("/*IsPureFunction*/ %s, /*IsConst*/ %s, /*IsNoexcept*/ %s,",
		cppBool(q.IsPureFunction), cppBool(q.IsConst), cppBool(q.IsNoexcept))
	w.line("/*IsVirtual*/ %s, /*IsOverride*/ %s, /*IsFinal*/ %s,",
		cppBool(q.IsVirtual), cppBool(q.IsOverride), cppBool(q.IsFinal))
	w.line("/*IsInline*/ %s, /*IsDeprecated*/ %s, %s);",
		cppBool(q.IsInline), cppBool(q.IsDeprecated), stringList(q.Other))
	w.indent--
}

// writeFunction registers a static free function as a parameterless, untyped
// static method tagged Function.
func writeFunction(w *writer, class, fn string) {
	w.line("Registry.RegisterMethodFull(")
	w.indent++
	w.line(`%s, %s, {"Function"},`, class, Quote(fn))
	w.line(`"", %s, "",`, Quote(string(model.AccessPublic)))
	w.line("/*IsStatic*/ true, {},")
	w.line("false, false, false, false, false, false, false, false, {});")
	w.indent--
}

// Services renders classes/<subdir>/<Name>_services.cpp, which defines
// RegisterRpc_<Name>. The service factory is registered unless the class is
// opted out; a real instance is only constructed when the class declares the
// factory marker and lives in an includable header. Method metadata is always
// registered, one record per distinct method name.
func Services(c *model.ClassRecord, opts Options) File {
	auto := opts.AutoRegisters(c)
	instance := auto && c.HasFactory && c.HeaderMode

	var w writer
	w.line(generatedBanner)
	w.line("// Source: %s", c.SourceFile)
	w.line("")
	w.line(`#include "Shared/RPC/IRpcService.h"`)
	w.line(`#include "Shared/RPC/RpcReflection.h"`)
	if instance {
		w.line("#include %s", Quote(includePath(c, opts)))
	}
	w.line("")
	w.line("#include <memory>")
	w.line("")
	w.line("namespace Helianthus::Reflection")
	w.line("{")
	w.open("void RegisterRpc_%s()", c.Name)
	w.line("auto& Services = Helianthus::RPC::RpcServiceRegistry::Get();")
	name := Quote(c.Name)

	if auto {
		w.open("if (!Services.HasService(%s))", name)
		w.line("Services.RegisterService(")
		w.indent++
		w.line("%s,", name)
		w.line("%s,", Quote(ServiceVersion))
		w.open("[]() -> std::shared_ptr<Helianthus::RPC::IRpcService>")
		if instance {
			w.line("return std::static_pointer_cast<Helianthus::RPC::IRpcService>(std::make_shared<%s>());", c.QualifiedName())
		} else {
			w.line("return std::shared_ptr<Helianthus::RPC::IRpcService>();")
		}
		w.close(");")
		w.indent--
		w.close("")
	}

	for _, m := range UniqueMethods(c) {
		w.open("")
		w.line("Helianthus::RPC::RpcMethodMeta Meta;")
		w.line("Meta.MethodName = %s;", Quote(m.Name))
		w.line("Meta.Category = %s;", Quote(MethodCategory))
		w.line("Meta.Tags = %s;", stringList(m.BusinessTags()))
		w.line("Meta.Description = %s;", Quote(m.Description))
		w.line("Services.RegisterMethod(%s, Meta);", name)
		w.close("")
	}
	w.close("")
	w.line("} // namespace Helianthus::Reflection")
	return File{Path: ServicesPath(c), Content: w.bytes()}
}

// UniqueMethods returns the methods of c with repeated names removed; the
// first declaration of each name wins.
func UniqueMethods(c *model.ClassRecord) []model.MethodRecord {
	seen := make(map[string]bool, len(c.Methods))
	out := make([]model.MethodRecord, 0, len(c.Methods))
	for _, m := range c.Methods {
		if seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		out = append(out, m)
	}
	return out
}
