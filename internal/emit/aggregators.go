package emit

import (
	"github.com/helianthus/reflectgen/internal/model"
)

// Names of the whole-tree aggregator files written to the output root.
const (
	GenHeaderFile     = "reflection_gen.h"
	RegistrationsFile = "reflection_registrations.cpp"
	ServicesFile      = "reflection_services.cpp"
	AutomountFile     = "reflection_automount.cpp"
	InitFile          = "reflection_init.cpp"
	AllFile           = "reflection_all.cpp"
)

// Aggregator renders one whole-tree file from the complete class list.
type Aggregator interface {
	// Name returns the output file name (e.g. "reflection_gen.h").
	Name() string
	// Render produces the file for the aggregated classes, sorted by name.
	Render(classes []model.ClassRecord, opts Options) File
}

// Registry holds registered aggregators.
type Registry struct {
	aggregators []Aggregator
}

// NewRegistry creates an empty aggregator registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns a registry with every aggregator the runtime
// expects, in emission order.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(aggregatorFunc{GenHeaderFile, renderGenHeader})
	r.Register(aggregatorFunc{RegistrationsFile, renderRegistrations})
	r.Register(aggregatorFunc{ServicesFile, renderServices})
	r.Register(aggregatorFunc{AutomountFile, renderAutomount})
	r.Register(aggregatorFunc{InitFile, renderInit})
	r.Register(aggregatorFunc{AllFile, renderAll})
	return r
}

// Register adds an aggregator to the registry.
func (r *Registry) Register(a Aggregator) {
	r.aggregators = append(r.aggregators, a)
}

// Get returns the aggregator with the given name, or nil if not found.
func (r *Registry) Get(name string) Aggregator {
	for _, a := range r.aggregators {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// All returns all registered aggregators.
func (r *Registry) All() []Aggregator {
	return r.aggregators
}

// Render runs every aggregator over classes. Classes under the tests subtree
// are left out.
func (r *Registry) Render(classes []model.ClassRecord, opts Options) []File {
	agg := Aggregated(classes, opts)
	out := make([]File, 0, len(r.aggregators))
	for _, a := range r.aggregators {
		out = append(out, a.Render(agg, opts))
	}
	return out
}

type aggregatorFunc struct {
	name   string
	render func(w *writer, classes []model.ClassRecord, opts Options)
}

func (a aggregatorFunc) Name() string { return a.name }

func (a aggregatorFunc) Render(classes []model.ClassRecord, opts Options) File {
	var w writer
	w.line(generatedBanner)
	a.render(&w, classes, opts)
	return File{Path: a.name, Content: w.bytes()}
}

func renderGenHeader(w *writer, classes []model.ClassRecord, _ Options) {
	w.line("#pragma once")
	w.line("")
	w.line("#include <mutex>")
	w.line("#include <string>")
	w.line("#include <vector>")
	w.line("")
	w.line("namespace Helianthus::RPC")
	w.line("{")
	w.line("class IRpcServer;")
	w.line("")
	w.line("// Mounts every registered service on Server.")
	w.line("void RegisterReflectedServices(IRpcServer& Server);")
	w.line("// Mounts the registered services that have at least one method tagged")
	w.line("// with one of RequiredTags.")
	w.line("void RegisterReflectedServices(IRpcServer& Server, const std::vector<std::string>& RequiredTags);")
	w.line("} // namespace Helianthus::RPC")
	w.line("")
	w.line("namespace Helianthus::Reflection")
	w.line("{")
	w.line("// Owned by the process bootstrapper. Each registration pass runs at most")
	w.line("// once per token.")
	w.line("struct ReflectionInitToken")
	w.line("{")
	w.line("    std::once_flag ClassesOnce;")
	w.line("    std::once_flag ServicesOnce;")
	w.line("};")
	w.line("")
	w.line("void RegisterAllReflectedClasses(ReflectionInitToken& Token);")
	w.line("void RegisterAllReflectedServices(ReflectionInitToken& Token);")
	w.line("void InitializeReflection(ReflectionInitToken& Token);")
	if len(classes) > 0 {
		w.line("")
		for _, c := range classes {
			w.line("void RegisterClass_%s();", c.Name)
			w.line("void RegisterRpc_%s();", c.Name)
		}
	}
	w.line("} // namespace Helianthus::Reflection")
	w.line("")
	w.line(`extern "C" int HelianthusReflectionForceLink;`)
}

// writeTable writes a compile-time table of {Name, fn} entries and the
// function that runs every entry once per token.
func writeTable(w *writer, entry, table, prefix, fn, flag string, classes []model.ClassRecord) {
	w.line(`#include "reflection_gen.h"`)
	w.line("")
	w.line("#include <array>")
	w.line("")
	w.line("namespace Helianthus::Reflection")
	w.line("{")
	w.line("namespace")
	w.line("{")
	w.line("struct %s", entry)
	w.line("{")
	w.line("    const char* Name;")
	w.line("    void (*Register)();")
	w.line("};")
	w.line("")
	if len(classes) == 0 {
		w.line("constexpr std::array<%s, 0> %s{};", entry, table)
	} else {
		w.line("constexpr std::array<%s, %d> %s{{", entry, len(classes), table)
		w.indent++
		for _, c := range classes {
			w.line("{%s, &%s%s},", Quote(c.Name), prefix, c.Name)
		}
		w.indent--
		w.line("}};")
	}
	w.line("} // namespace")
	w.line("")
	w.open("void %s(ReflectionInitToken& Token)", fn)
	w.line("std::call_once(Token.%s, [] {", flag)
	w.indent++
	w.open("for (const auto& Entry : %s)", table)
	w.line("Entry.Register();")
	w.close("")
	w.indent--
	w.line("});")
	w.close("")
	w.line("} // namespace Helianthus::Reflection")
}

func renderRegistrations(w *writer, classes []model.ClassRecord, _ Options) {
	writeTable(w, "ClassEntry", "ReflectedClasses", "RegisterClass_",
		"RegisterAllReflectedClasses", "ClassesOnce", classes)
}

func renderServices(w *writer, classes []model.ClassRecord, _ Options) {
	writeTable(w, "ServiceEntry", "ReflectedServices", "RegisterRpc_",
		"RegisterAllReflectedServices", "ServicesOnce", classes)
}

func renderInit(w *writer, _ []model.ClassRecord, _ Options) {
	w.line(`#include "reflection_gen.h"`)
	w.line("")
	w.line("// Referenced by the bootstrapper so the linker keeps this object.")
	w.line(`extern "C"`)
	w.line("{")
	w.line("int HelianthusReflectionForceLink = 0;")
	w.line("}")
	w.line("")
	w.line("namespace Helianthus::Reflection")
	w.line("{")
	w.open("void InitializeReflection(ReflectionInitToken& Token)")
	w.line("RegisterAllReflectedClasses(Token);")
	w.line("RegisterAllReflectedServices(Token);")
	w.close("")
	w.line("} // namespace Helianthus::Reflection")
}

// renderAutomount writes both RegisterReflectedServices overloads. Services
// are taken from the runtime registry in name order so services registered
// by hand are mounted too.
func renderAutomount(w *writer, _ []model.ClassRecord, _ Options) {
	w.line(`#include "reflection_gen.h"`)
	w.line("")
	w.line(`#include "Shared/Common/LogCategories.h"`)
	w.line(`#include "Shared/RPC/IRpcServer.h"`)
	w.line(`#include "Shared/RPC/RpcReflection.h"`)
	w.line("")
	w.line("#include <algorithm>")
	w.line("#include <string>")
	w.line("#include <vector>")
	w.line("")
	w.line("namespace Helianthus::RPC")
	w.line("{")
	w.line("namespace")
	w.line("{")
	w.open("bool ShouldLog()")
	w.line("return !Helianthus::Common::Logger::IsShuttingDown();")
	w.close("")
	w.line("")
	w.open("std::vector<std::string> SortedServiceNames()")
	w.line("auto Names = RpcServiceRegistry::Get().ListServices();")
	w.line("std::sort(Names.begin(), Names.end());")
	w.line("return Names;")
	w.close("")
	w.line("")
	w.open("bool HasRequiredTag(const RpcMethodMeta& Method, const std::vector<std::string>& RequiredTags)")
	w.open("for (const auto& Tag : Method.Tags)")
	w.open("if (std::find(RequiredTags.begin(), RequiredTags.end(), Tag) != RequiredTags.end())")
	w.line("return true;")
	w.close("")
	w.close("")
	w.line("return false;")
	w.close("")
	w.line("} // namespace")
	w.line("")
	w.open("void RegisterReflectedServices(IRpcServer& Server)")
	w.open("for (const auto& Name : SortedServiceNames())")
	w.line("auto Service = RpcServiceRegistry::Get().Create(Name);")
	w.open("if (!Service)")
	w.line("continue;")
	w.close("")
	w.line("Server.RegisterService(Service);")
	w.open("if (ShouldLog())")
	w.line(`H_LOG(Rpc, Helianthus::Common::LogVerbosity::Display, "Mounted reflected service: {}", Name);`)
	w.close("")
	w.close("")
	w.close("")
	w.line("")
	w.open("void RegisterReflectedServices(IRpcServer& Server, const std::vector<std::string>& RequiredTags)")
	w.open("for (const auto& Name : SortedServiceNames())")
	w.line("const auto Meta = RpcServiceRegistry::Get().GetMeta(Name);")
	w.line("std::vector<std::string> Matched;")
	w.open("for (const auto& Method : Meta.Methods)")
	w.open("if (HasRequiredTag(Method, RequiredTags))")
	w.line("Matched.push_back(Method.MethodName);")
	w.close("")
	w.close("")
	w.open("if (Matched.empty())")
	w.open("if (ShouldLog())")
	w.line(`H_LOG(Rpc, Helianthus::Common::LogVerbosity::Display, "Skipped reflected service {}: no method carries a required tag", Name);`)
	w.close("")
	w.line("continue;")
	w.close("")
	w.line("auto Service = RpcServiceRegistry::Get().Create(Name);")
	w.open("if (!Service)")
	w.open("if (ShouldLog())")
	w.line(`H_LOG(Rpc, Helianthus::Common::LogVerbosity::Warning, "Skipped reflected service {}: no factory instance", Name);`)
	w.close("")
	w.line("continue;")
	w.close("")
	w.line("Server.RegisterService(Service);")
	w.open("if (ShouldLog())")
	w.open("for (const auto& Method : Matched)")
	w.line(`H_LOG(Rpc, Helianthus::Common::LogVerbosity::Display, "Mounted reflected service {} (method {})", Name, Method);`)
	w.close("")
	w.close("")
	w.close("")
	w.close("")
	w.line("} // namespace Helianthus::RPC")
}

// renderAll writes the unity file that compiles every aggregator and
// fragment of the output directory as one translation unit.
func renderAll(w *writer, classes []model.ClassRecord, _ Options) {
	for _, f := range []string{RegistrationsFile, ServicesFile, AutomountFile, InitFile} {
		w.line("#include %s", Quote(f))
	}
	if len(classes) == 0 {
		return
	}
	w.line("")
	for i := range classes {
		w.line("#include %s", Quote(RegistrationPath(&classes[i])))
		w.line("#include %s", Quote(ServicesPath(&classes[i])))
	}
}
