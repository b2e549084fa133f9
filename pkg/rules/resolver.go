// Package rules implements the rule resolver: for each declarative
// packaging rule, enumerate add/remove resource actions against a
// distribution.
package rules

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/replicate/pyrepack/pkg/distro"
	"github.com/replicate/pyrepack/pkg/manifest"
	"github.com/replicate/pyrepack/pkg/repackerr"
	"github.com/replicate/pyrepack/pkg/resource"
	"github.com/replicate/pyrepack/pkg/targetdata"
	"github.com/replicate/pyrepack/pkg/util/console"
)

// FilterSentinel marks a FilterFileInclude/FilterFilesInclude rule.
// Resolution produces no actions for it directly: the whitelist
// files named here are read and intersected against the staging maps by
// the resource reducer (pkg/stage), which also records them in
// stage.Resources.ReadFiles for build-script change tracking.
type FilterSentinel struct {
	Paths []string
}

// RuleOutput is what resolving one manifest.Rule produces: either a
// stream of resource actions, or (for filter rules) a sentinel for the
// reducer to execute.
type RuleOutput struct {
	Actions []resource.Action
	Filter  *FilterSentinel
}

// Resolver resolves packaging rules against one distribution.
type Resolver struct {
	Distribution *distro.Distribution
	TargetOS     string // "linux", "macos", "windows" — selects targetdata tables
}

func New(d *distro.Distribution, targetOS string) *Resolver {
	return &Resolver{Distribution: d, TargetOS: targetOS}
}

// Resolve dispatches rule to the variant-specific resolution logic.
func (r *Resolver) Resolve(rule manifest.Rule) (RuleOutput, error) {
	switch rule.Type {
	case manifest.RuleStdlibExtensionsPolicy:
		return r.resolveStdlibExtensionsPolicy(rule)
	case manifest.RuleStdlibExtensionsExplicitIncludes:
		return r.resolveStdlibExtensionsExplicitIncludes(rule)
	case manifest.RuleStdlibExtensionsExplicitExcludes:
		return r.resolveStdlibExtensionsExplicitExcludes(rule)
	case manifest.RuleStdlibExtensionVariant:
		return r.resolveStdlibExtensionVariant(rule)
	case manifest.RuleStdlib:
		return r.resolveStdlib(rule)
	case manifest.RuleVirtualenv:
		return r.resolveVirtualenv(rule)
	case manifest.RulePackageRoot:
		return r.resolvePackageRoot(rule)
	case manifest.RulePipInstallSimple:
		return r.resolvePipInstallSimple(rule)
	case manifest.RuleFilterFileInclude:
		return RuleOutput{Filter: &FilterSentinel{Paths: []string{rule.Path}}}, nil
	case manifest.RuleFilterFilesInclude:
		matches, err := filepath.Glob(rule.Glob)
		if err != nil {
			return RuleOutput{}, &ConfigError{Rule: string(rule.Type), Message: err.Error()}
		}
		return RuleOutput{Filter: &FilterSentinel{Paths: matches}}, nil
	default:
		return RuleOutput{}, &ConfigError{Rule: string(rule.Type), Message: "unknown rule type"}
	}
}

func toResourceVariant(v distro.ExtensionModuleVariant) resource.ExtensionVariant {
	return resource.ExtensionVariant{
		VariantName:    v.Variant,
		BuiltinDefault: v.BuiltinDefault,
		Required:       v.Required,
		InitFunc:       v.InitFunc,
		ObjectPaths:    v.ObjectPaths,
	}
}

func (r *Resolver) resolveStdlibExtensionsPolicy(rule manifest.Rule) (RuleOutput, error) {
	var actions []resource.Action

	for _, name := range r.Distribution.SortedExtensionNames() {
		switch rule.Policy {
		case "minimal":
			v, ok := r.Distribution.FirstVariant(name)
			if ok && (v.BuiltinDefault || v.Required) {
				actions = append(actions, resource.AddAction(resource.ExtensionModule(name, toResourceVariant(v))))
			}
		case "all":
			v, ok := r.Distribution.FirstVariant(name)
			if ok {
				actions = append(actions, resource.AddAction(resource.ExtensionModule(name, toResourceVariant(v))))
			}
		case "no-libraries":
			v, ok := r.Distribution.FirstVariantWithoutLinks(name)
			if ok {
				actions = append(actions, resource.AddAction(resource.ExtensionModule(name, toResourceVariant(v))))
			}
		default:
			return RuleOutput{}, &ConfigError{Rule: "stdlib_extensions_policy", Message: fmt.Sprintf("unknown policy %q", rule.Policy)}
		}
	}

	return RuleOutput{Actions: actions}, nil
}

// resolveStdlibExtensionsExplicitIncludes silently ignores names absent
// from the distribution. This asymmetry with StdlibExtensionVariant
// (which fails fatally on a missing extension) is intentional upstream,
// not a bug — see the Open Question this carries forward.
func (r *Resolver) resolveStdlibExtensionsExplicitIncludes(rule manifest.Rule) (RuleOutput, error) {
	var actions []resource.Action

	for _, name := range rule.Names {
		v, ok := r.Distribution.FirstVariant(name)
		if !ok {
			console.Debugf("stdlib_extensions_explicit_includes: %q not present in distribution, skipping", name)
			continue
		}
		actions = append(actions, resource.AddAction(resource.ExtensionModule(name, toResourceVariant(v))))
	}

	return RuleOutput{Actions: actions}, nil
}

func (r *Resolver) resolveStdlibExtensionsExplicitExcludes(rule manifest.Rule) (RuleOutput, error) {
	excluded := make(map[string]bool, len(rule.Names))
	for _, n := range rule.Names {
		excluded[n] = true
	}

	var actions []resource.Action
	for _, name := range r.Distribution.SortedExtensionNames() {
		if excluded[name] {
			continue
		}
		v, ok := r.Distribution.FirstVariant(name)
		if ok {
			actions = append(actions, resource.AddAction(resource.ExtensionModule(name, toResourceVariant(v))))
		}
	}

	return RuleOutput{Actions: actions}, nil
}

func (r *Resolver) resolveStdlibExtensionVariant(rule manifest.Rule) (RuleOutput, error) {
	if _, ok := r.Distribution.ExtensionModules[rule.Extension]; !ok {
		return RuleOutput{}, &ConfigError{Rule: "stdlib_extension_variant", Message: fmt.Sprintf("unknown extension %q", rule.Extension)}
	}
	v, ok := r.Distribution.VariantNamed(rule.Extension, rule.Variant)
	if !ok {
		return RuleOutput{}, &ConfigError{Rule: "stdlib_extension_variant", Message: fmt.Sprintf("extension %q has no variant %q", rule.Extension, rule.Variant)}
	}

	return RuleOutput{Actions: []resource.Action{
		resource.AddAction(resource.ExtensionModule(rule.Extension, toResourceVariant(v))),
	}}, nil
}

func (r *Resolver) resolveStdlib(rule manifest.Rule) (RuleOutput, error) {
	var actions []resource.Action

	for _, name := range r.Distribution.SortedPyModuleNames() {
		if rule.ExcludeTestModules && resource.MatchesAnyPrefix(name, targetdata.StdlibTestPackages) {
			continue
		}

		path := r.Distribution.PyModules[name]
		moduleActions, err := buildModuleActions(name, path, rule.OptimizeLevel, rule.IncludeSource)
		if err != nil {
			return RuleOutput{}, err
		}
		actions = append(actions, moduleActions...)
	}

	return RuleOutput{Actions: actions}, nil
}

func (r *Resolver) resolveVirtualenv(rule manifest.Rule) (RuleOutput, error) {
	majorMinor, err := r.Distribution.MajorMinor()
	if err != nil {
		return RuleOutput{}, &ConfigError{Rule: "virtualenv", Message: err.Error()}
	}

	libDir := "lib"
	if r.TargetOS == "windows" {
		libDir = "Lib"
	}

	var sitePackages string
	if r.TargetOS == "windows" {
		sitePackages = filepath.Join(rule.Path, libDir, "site-packages")
	} else {
		sitePackages = filepath.Join(rule.Path, libDir, "python"+majorMinor, "site-packages")
	}

	return r.scanAndBuild(sitePackages, nil, rule.Excludes, rule.OptimizeLevel, rule.IncludeSource)
}

func (r *Resolver) resolvePackageRoot(rule manifest.Rule) (RuleOutput, error) {
	return r.scanAndBuild(rule.Path, rule.Packages, rule.Excludes, rule.OptimizeLevel, rule.IncludeSource)
}

func (r *Resolver) resolvePipInstallSimple(rule manifest.Rule) (RuleOutput, error) {
	if !r.Distribution.HasPip() {
		return RuleOutput{}, &DistributionError{Message: "pip is not available in this distribution"}
	}

	tmpDir, cleanup, err := pipInstall(r.Distribution.PythonExe, rule.Package)
	if err != nil {
		return RuleOutput{}, err
	}
	defer cleanup()

	return r.scanAndBuild(tmpDir, nil, nil, rule.OptimizeLevel, rule.IncludeSource)
}

// scanAndBuild walks root for .py sources, keeps those matching packages
// (or every module, when packages is empty) minus excludes under the
// dotted-name prefix rule, and emits module actions for what remains.
func (r *Resolver) scanAndBuild(root string, packages, excludes []string, optimizeLevel int, includeSource bool) (RuleOutput, error) {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return RuleOutput{}, &DistributionError{Message: fmt.Sprintf("path %s does not exist", root)}
		}
		return RuleOutput{}, repackerr.NewIoError("stat", root, err)
	}

	modules, err := scanSourceTree(root)
	if err != nil {
		return RuleOutput{}, err
	}

	var actions []resource.Action
	for _, name := range sortedKeys(modules) {
		if len(packages) > 0 && !resource.MatchesAnyPrefix(name, packages) {
			continue
		}
		if resource.MatchesAnyPrefix(name, excludes) {
			continue
		}

		moduleActions, err := buildModuleActions(name, modules[name], optimizeLevel, includeSource)
		if err != nil {
			return RuleOutput{}, err
		}
		actions = append(actions, moduleActions...)
	}

	return RuleOutput{Actions: actions}, nil
}

// buildModuleActions reads path once and emits a ModuleBytecode add
// action (always) plus a ModuleSource add action when includeSource is
// set, matching Stdlib/Virtualenv/PackageRoot/PipInstallSimple's shared
// "same source/bytecode emission" rule.
func buildModuleActions(name, path string, optimizeLevel int, includeSource bool) ([]resource.Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, repackerr.NewIoError("read", path, err)
	}

	actions := []resource.Action{
		resource.AddAction(resource.ModuleBytecode(name, data, optimizeLevel)),
	}
	if includeSource {
		actions = append(actions, resource.AddAction(resource.ModuleSource(name, data)))
	}
	return actions, nil
}
