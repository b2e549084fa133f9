// Package stage implements the resource reducer: a single pass that
// applies every rule's actions into staging maps, intersects them against
// whitelist filters as encountered, forces in the required-extensions
// closure, removes target-ignored extensions, and finally batch-compiles
// every staged bytecode request through the bytecode compiler driver.
package stage

import (
	"bufio"
	"os"
	"sort"
	"strings"

	"github.com/replicate/pyrepack/pkg/bytecode"
	"github.com/replicate/pyrepack/pkg/distro"
	"github.com/replicate/pyrepack/pkg/repackerr"
	"github.com/replicate/pyrepack/pkg/resource"
	"github.com/replicate/pyrepack/pkg/rules"
	"github.com/replicate/pyrepack/pkg/targetdata"
	"github.com/replicate/pyrepack/pkg/util/console"
)

// bytecodeRequest is a staged (source, optimize) pair awaiting
// compilation; kept separate from the compiled module_bytecodes map so
// that later filter/remove actions can still evict it cheaply, without
// having wasted a compile on a module the build no longer wants (the reduction
// rationale).
type bytecodeRequest struct {
	Source        []byte
	OptimizeLevel int
}

// Resources is the staging record the reducer produces, frozen once Reduce
// returns: read-only through every later component.
type Resources struct {
	ModuleSources    map[string][]byte
	ModuleBytecodes  map[string][]byte
	ExtensionModules map[string]resource.ExtensionVariant
	Resources        map[string][]byte
	AllModules       []string
	ReadFiles        []string

	bytecodeRequests map[string]bytecodeRequest
}

func newResources() *Resources {
	return &Resources{
		ModuleSources:    map[string][]byte{},
		ModuleBytecodes:  map[string][]byte{},
		ExtensionModules: map[string]resource.ExtensionVariant{},
		Resources:        map[string][]byte{},
		bytecodeRequests: map[string]bytecodeRequest{},
	}
}

// Reducer owns the distribution and compiler a reduction pass needs.
type Reducer struct {
	Distribution *distro.Distribution
	Compiler     *bytecode.Compiler
	TargetOS     string
}

func New(d *distro.Distribution, compiler *bytecode.Compiler, targetOS string) *Reducer {
	return &Reducer{Distribution: d, Compiler: compiler, TargetOS: targetOS}
}

// Reduce applies ruleOutputs in order and returns the frozen staging
// result, including the batch-compiled bytecode.
func (red *Reducer) Reduce(ruleOutputs []rules.RuleOutput) (*Resources, error) {
	res := newResources()

	for _, out := range ruleOutputs {
		if out.Filter != nil {
			if err := red.applyFilter(res, out.Filter.Paths); err != nil {
				return nil, err
			}
			continue
		}
		for _, action := range out.Actions {
			applyAction(res, action)
		}
	}

	red.forceRequiredExtensions(res)
	red.removeIgnoredExtensions(res)

	if err := red.compileBytecode(res); err != nil {
		return nil, err
	}

	res.AllModules = unionSortedKeys(res.ModuleSources, res.ModuleBytecodes)
	return res, nil
}

func applyAction(res *Resources, action resource.Action) {
	switch action.Resource.Kind {
	case resource.KindExtensionModule:
		if action.Verb == resource.Add {
			res.ExtensionModules[action.Resource.Name] = action.Resource.Variant
		} else {
			delete(res.ExtensionModules, action.Resource.Name)
		}
	case resource.KindModuleSource:
		if action.Verb == resource.Add {
			res.ModuleSources[action.Resource.Name] = action.Resource.Bytes
		} else {
			delete(res.ModuleSources, action.Resource.Name)
		}
	case resource.KindModuleBytecode:
		if action.Verb == resource.Add {
			res.bytecodeRequests[action.Resource.Name] = bytecodeRequest{
				Source:        action.Resource.Bytes,
				OptimizeLevel: action.Resource.OptimizeLevel,
			}
		} else {
			delete(res.bytecodeRequests, action.Resource.Name)
		}
	case resource.KindResource:
		if action.Verb == resource.Add {
			res.Resources[action.Resource.Name] = action.Resource.Bytes
		} else {
			delete(res.Resources, action.Resource.Name)
		}
	}
}

// applyFilter loads the whitelist named by paths (one file, or the union
// of every file a glob matched), intersects all four staging maps
// against it, and records the file(s) read for build-script change
// tracking.
func (red *Reducer) applyFilter(res *Resources, paths []string) error {
	whitelist := map[string]bool{}
	for _, p := range paths {
		names, err := readResourceNamesFile(p)
		if err != nil {
			return err
		}
		for _, n := range names {
			whitelist[n] = true
		}
		res.ReadFiles = append(res.ReadFiles, p)
	}

	intersectBytes(res.ModuleSources, whitelist)
	intersectRequests(res.bytecodeRequests, whitelist)
	intersectBytes(res.Resources, whitelist)
	intersectVariants(res.ExtensionModules, whitelist)

	return nil
}

func intersectBytes(m map[string][]byte, whitelist map[string]bool) {
	for k := range m {
		if !whitelist[k] {
			console.Debugf("filter: dropping %q, not in whitelist", k)
			delete(m, k)
		}
	}
}

func intersectRequests(m map[string]bytecodeRequest, whitelist map[string]bool) {
	for k := range m {
		if !whitelist[k] {
			delete(m, k)
		}
	}
}

func intersectVariants(m map[string]resource.ExtensionVariant, whitelist map[string]bool) {
	for k := range m {
		if !whitelist[k] {
			delete(m, k)
		}
	}
}

// forceRequiredExtensions implements the reduction's forced-inclusion half: any
// extension flagged builtin_default or required that staging is still
// missing gets force-added, regardless of which rules ran.
func (red *Reducer) forceRequiredExtensions(res *Resources) {
	for _, name := range red.Distribution.SortedExtensionNames() {
		if _, present := res.ExtensionModules[name]; present {
			continue
		}
		v, ok := red.Distribution.FirstVariant(name)
		if !ok || !(v.BuiltinDefault || v.Required) {
			continue
		}
		res.ExtensionModules[name] = resource.ExtensionVariant{
			VariantName:    v.Variant,
			BuiltinDefault: v.BuiltinDefault,
			Required:       v.Required,
			InitFunc:       v.InitFunc,
			ObjectPaths:    v.ObjectPaths,
		}
	}
}

// removeIgnoredExtensions implements the reduction's removal half: the
// per-target blocklist always wins, even over a forced required/default
// extension, since those modules are known not to link on this target.
func (red *Reducer) removeIgnoredExtensions(res *Resources) {
	for _, name := range targetdata.IgnoreExtensions[red.TargetOS] {
		delete(res.ExtensionModules, name)
	}
}

func (red *Reducer) compileBytecode(res *Resources) error {
	if len(res.bytecodeRequests) == 0 {
		return nil
	}

	names := make([]string, 0, len(res.bytecodeRequests))
	for name := range res.bytecodeRequests {
		names = append(names, name)
	}
	sort.Strings(names)

	requests := make([]bytecode.Request, 0, len(names))
	for _, name := range names {
		req := res.bytecodeRequests[name]
		requests = append(requests, bytecode.Request{Name: name, Source: req.Source, OptimizeLevel: req.OptimizeLevel})
	}

	results, err := red.Compiler.CompileBatch(requests)
	if err != nil {
		return err
	}

	for _, r := range results {
		res.ModuleBytecodes[r.Name] = r.Bytecode
	}
	return nil
}

func unionSortedKeys(a, b map[string][]byte) []string {
	set := make(map[string]bool, len(a)+len(b))
	for k := range a {
		set[k] = true
	}
	for k := range b {
		set[k] = true
	}
	names := make([]string, 0, len(set))
	for k := range set {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// readResourceNamesFile reads one newline-delimited whitelist file,
// skipping "#"-comments and empty lines, mirroring the original
// read_resource_names_file.
func readResourceNamesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, repackerr.NewIoError("open", path, err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, repackerr.NewIoError("read", path, err)
	}

	return names, nil
}
