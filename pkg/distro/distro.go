// Package distro models a prebuilt Python distribution: the sources,
// objects, headers, libraries and extension-module manifest that the
// rule resolver and libpython linker read from. Archive extraction that
// produces a Distribution is an external collaborator; this package only
// describes the shape once extracted.
package distro

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"
)

// LibraryDependency is a single native library an extension module or the
// Python core links against. Framework and System are mutually exclusive
// with each other and with a static/dynamic archive path; Framework is
// meaningful only on macOS targets.
type LibraryDependency struct {
	Name        string `json:"name"`
	Framework   bool   `json:"framework,omitempty"`
	System      bool   `json:"system,omitempty"`
	StaticPath  string `json:"static_path,omitempty"`
	DynamicPath string `json:"dynamic_path,omitempty"`
}

// ExtensionModuleVariant is one build flavor of an extension module, e.g.
// differing by which SSL implementation it links against.
type ExtensionModuleVariant struct {
	Variant        string `json:"variant"`
	BuiltinDefault bool   `json:"builtin_default,omitempty"`
	Required       bool   `json:"required,omitempty"`
	// InitFunc is the C symbol of the module's init function, or the
	// literal "NULL" when the variant has none (and so contributes
	// neither an extern declaration nor an inittab row).
	InitFunc    string              `json:"init_fn,omitempty"`
	ObjectPaths []string            `json:"object_paths,omitempty"`
	Links       []LibraryDependency `json:"links,omitempty"`
}

func (v ExtensionModuleVariant) HasInitFunc() bool {
	return v.InitFunc != "" && v.InitFunc != "NULL"
}

// Distribution is the immutable input describing a prebuilt Python build.
// Every map here is read-only after construction; callers that need
// deterministic iteration must sort the keys themselves, as Go gives no
// ordering guarantee over map ranges.
type Distribution struct {
	PythonExe string `json:"python_exe"`
	OS        string `json:"os"`
	Version   string `json:"version"`

	// PyModules maps a dotted module name to its on-disk source path.
	PyModules map[string]string `json:"py_modules"`

	// ExtensionModules maps a dotted module name to its ordered,
	// nonempty list of build variants.
	ExtensionModules map[string][]ExtensionModuleVariant `json:"extension_modules"`

	// ObjsCore maps a distribution-relative object path (e.g.
	// "Modules/config.o") to its on-disk location.
	ObjsCore map[string]string `json:"objs_core"`

	// Includes maps a relative header path to its on-disk location.
	Includes map[string]string `json:"includes"`

	// Libraries maps a library short name to its on-disk static archive.
	Libraries map[string]string `json:"libraries"`

	LinksCore []LibraryDependency `json:"links_core,omitempty"`
}

// ParsedVersion parses Version as a semantic version, for callers that
// need to compare distributions (e.g. picking the site-packages path
// fragment, which only needs major.minor).
func (d *Distribution) ParsedVersion() (*version.Version, error) {
	return version.NewVersion(d.Version)
}

// MajorMinor returns "<major>.<minor>" derived from Version, the fragment
// used to build the virtualenv site-packages path.
func (d *Distribution) MajorMinor() (string, error) {
	v, err := d.ParsedVersion()
	if err != nil {
		return "", fmt.Errorf("parsing distribution version %q: %w", d.Version, err)
	}
	segs := v.Segments()
	if len(segs) < 2 {
		return "", fmt.Errorf("distribution version %q has no minor component", d.Version)
	}
	return fmt.Sprintf("%d.%d", segs[0], segs[1]), nil
}

// HasPip reports whether pip is importable in this distribution, the
// precondition for PipInstallSimple rules.
func (d *Distribution) HasPip() bool {
	_, ok := d.PyModules["pip"]
	return ok
}

// Summary renders a short, human-readable description of the
// distribution for an Info-level log line after it is loaded. Ported
// from the upstream "distribution info" debug dump.
func (d *Distribution) Summary() string {
	var extNames []string
	for name := range d.ExtensionModules {
		extNames = append(extNames, name)
	}
	sort.Strings(extNames)

	return fmt.Sprintf(
		"python %s (%s), %d modules, %d extensions, %d core objects, %d libraries",
		d.Version, d.OS, len(d.PyModules), len(extNames), len(d.ObjsCore), len(d.Libraries),
	)
}

// FirstVariant returns the first declared variant of an extension module.
// Distribution invariants guarantee the slice is nonempty whenever the key
// is present.
func (d *Distribution) FirstVariant(name string) (ExtensionModuleVariant, bool) {
	variants, ok := d.ExtensionModules[name]
	if !ok || len(variants) == 0 {
		return ExtensionModuleVariant{}, false
	}
	return variants[0], true
}

// VariantNamed returns the variant of name whose Variant field equals
// wanted.
func (d *Distribution) VariantNamed(name, wanted string) (ExtensionModuleVariant, bool) {
	for _, v := range d.ExtensionModules[name] {
		if v.Variant == wanted {
			return v, true
		}
	}
	return ExtensionModuleVariant{}, false
}

// FirstVariantWithoutLinks returns the first variant of name whose Links
// is empty, used by the "no-libraries" stdlib extensions policy.
func (d *Distribution) FirstVariantWithoutLinks(name string) (ExtensionModuleVariant, bool) {
	for _, v := range d.ExtensionModules[name] {
		if len(v.Links) == 0 {
			return v, true
		}
	}
	return ExtensionModuleVariant{}, false
}

// SortedExtensionNames returns the extension module names in ascending
// order, the iteration order every component in this repository must use.
func (d *Distribution) SortedExtensionNames() []string {
	names := make([]string, 0, len(d.ExtensionModules))
	for name := range d.ExtensionModules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedPyModuleNames returns the py_modules keys in ascending order.
func (d *Distribution) SortedPyModuleNames() []string {
	names := make([]string, 0, len(d.PyModules))
	for name := range d.PyModules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsValidDottedName reports whether n matches the Python dotted-name
// grammar [A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*.
func IsValidDottedName(n string) bool {
	if n == "" {
		return false
	}
	for _, part := range strings.Split(n, ".") {
		if !isValidIdentifier(part) {
			return false
		}
	}
	return true
}

func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
