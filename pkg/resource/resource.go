// Package resource defines the tagged-variant PythonResource type the
// rule resolver produces and the resource reducer stages: pure data, no
// behavior beyond construction and equality.
package resource

import "fmt"

// Kind identifies which PythonResource variant a value carries.
type Kind int

const (
	KindExtensionModule Kind = iota
	KindModuleSource
	KindModuleBytecode
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindExtensionModule:
		return "ExtensionModule"
	case KindModuleSource:
		return "ModuleSource"
	case KindModuleBytecode:
		return "ModuleBytecode"
	case KindResource:
		return "Resource"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// PythonResource is the closed sum type produced by the rule resolver.
// Every field outside of the variant this value's Kind names is zero and
// should not be read; dispatch on Kind before touching a variant-specific
// field, the same discipline the Go translation of every other tagged
// union in this repository follows (see resource.Action, manifest.Rule).
type PythonResource struct {
	Kind Kind

	Name string // all variants

	// ExtensionModule
	Variant ExtensionVariant

	// ModuleSource / ModuleBytecode / Resource
	Bytes []byte

	// ModuleBytecode only.
	OptimizeLevel int
}

// ExtensionVariant is the subset of distro.ExtensionModuleVariant a
// resource carries; kept as a distinct type here so pkg/resource does not
// import pkg/distro, avoiding a dependency cycle with pkg/rules which
// imports both.
type ExtensionVariant struct {
	VariantName    string
	BuiltinDefault bool
	Required       bool
	InitFunc       string
	ObjectPaths    []string
}

func ExtensionModule(name string, v ExtensionVariant) PythonResource {
	return PythonResource{Kind: KindExtensionModule, Name: name, Variant: v}
}

func ModuleSource(name string, data []byte) PythonResource {
	return PythonResource{Kind: KindModuleSource, Name: name, Bytes: data}
}

func ModuleBytecode(name string, source []byte, optimize int) PythonResource {
	return PythonResource{Kind: KindModuleBytecode, Name: name, Bytes: source, OptimizeLevel: optimize}
}

func Resource(name string, data []byte) PythonResource {
	return PythonResource{Kind: KindResource, Name: name, Bytes: data}
}

// ActionVerb distinguishes an Add from a Remove action.
type ActionVerb int

const (
	Add ActionVerb = iota
	Remove
)

func (v ActionVerb) String() string {
	if v == Add {
		return "Add"
	}
	return "Remove"
}

// Action pairs a verb with the resource it applies to. Remove actions
// only need enough of Resource to identify the entry to delete (Kind and
// Name); the reducer ignores Bytes/Variant on a Remove.
type Action struct {
	Verb     ActionVerb
	Resource PythonResource
}

func AddAction(r PythonResource) Action    { return Action{Verb: Add, Resource: r} }
func RemoveAction(r PythonResource) Action { return Action{Verb: Remove, Resource: r} }

// MatchesPrefix implements the dotted-name prefix-matching rule shared by
// every rule that filters by package name: n matches pattern p iff n == p
// or n starts with p + ".". This is what keeps an exclude of "foo.bar"
// from also matching "foo.barbell".
func MatchesPrefix(n, p string) bool {
	if n == p {
		return true
	}
	return len(n) > len(p) && n[:len(p)] == p && n[len(p)] == '.'
}

// MatchesAnyPrefix reports whether n matches any pattern in patterns
// under the MatchesPrefix rule.
func MatchesAnyPrefix(n string, patterns []string) bool {
	for _, p := range patterns {
		if MatchesPrefix(n, p) {
			return true
		}
	}
	return false
}
