// Package engine implements the orchestrator: it threads one
// configuration through the blob codec, bytecode compiler, resource
// model, rule resolver, resource reducer, frozen-importlib deriver,
// config.c generator and libpython linker, writes every artifact to
// BuildDir/OutDir, and returns a summary plus the accumulated
// build-script directives.
package engine

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/replicate/pyrepack/pkg/blob"
	"github.com/replicate/pyrepack/pkg/bytecode"
	"github.com/replicate/pyrepack/pkg/distro"
	"github.com/replicate/pyrepack/pkg/frozenimport"
	"github.com/replicate/pyrepack/pkg/linker"
	"github.com/replicate/pyrepack/pkg/manifest"
	"github.com/replicate/pyrepack/pkg/repackerr"
	"github.com/replicate/pyrepack/pkg/rules"
	"github.com/replicate/pyrepack/pkg/stage"
	"github.com/replicate/pyrepack/pkg/util/console"
)

// BlobPaths names the four blob files the runtime-config literal points
// at; kept as a separate struct from EmbeddedConfig so RenderRuntimeConfig
// does not need to import the rest of that type's bookkeeping fields.
type BlobPaths struct {
	ImportlibBootstrap         string
	ImportlibBootstrapExternal string
	ModuleSources              string
	ModuleBytecode             string
}

// EmbeddedConfig is the summary Run returns: every artifact path
// it wrote, the resolved staging result, and the ordered build-script
// directive lines.
type EmbeddedConfig struct {
	Config                *manifest.Config
	Resources              *stage.Resources
	ModuleNamesPath        string
	ModuleSourcesPath      string
	ModuleBytecodePath     string
	ImportlibBootstrapPath string
	ImportlibExternalPath  string
	LibpythonPath          string
	RuntimeConfigPath      string
	Directives             []string
}

// Orchestrator holds the inputs one Run needs: the parsed
// config, the distribution to resolve it against, the build/output
// directories, and the target OS selecting targetdata's tables.
type Orchestrator struct {
	Config       *manifest.Config
	Distribution *distro.Distribution
	TargetOS     string
	BuildDir     string
	OutDir       string

	// ConfigPath is the resolved path the Config was loaded from, emitted
	// as a "<rerun-if-changed=...>" directive so a stale build is never
	// reused after the packaging rules change.
	ConfigPath string

	// BuildScriptPath is the path of the entry point driving this run,
	// the Go equivalent of Cargo's file!()-supplied build script path,
	// also emitted as a "<rerun-if-changed=...>" directive.
	BuildScriptPath string

	// OptLevel is the native compiler optimization level,
	// passed through to the libpython linker's cc invocations as "-O<level>".
	OptLevel string

	// NativeCompiler overrides the default CCDriver; tests inject a fake
	// here instead of requiring a real C toolchain on the test host.
	NativeCompiler linker.NativeCompiler

	// ShowProgress enables an mpb progress bar over the batched bytecode
	// compilation pass, the single longest-running step of a cold build.
	ShowProgress bool
}

// Run executes the full repackaging pipeline and writes every output artifact.
func (o *Orchestrator) Run() (*EmbeddedConfig, error) {
	if err := os.MkdirAll(o.BuildDir, 0o755); err != nil {
		return nil, repackerr.NewIoError("mkdir", o.BuildDir, err)
	}
	if err := os.MkdirAll(o.OutDir, 0o755); err != nil {
		return nil, repackerr.NewIoError("mkdir", o.OutDir, err)
	}

	console.Infof("distribution info: %s", o.Distribution.Summary())

	compiler, err := bytecode.New(o.Distribution.PythonExe)
	if err != nil {
		return nil, err
	}
	defer compiler.Close()

	console.Infof("compiling custom importlib modules to support in-memory importing")
	importlib, err := frozenimport.Derive(o.Distribution, compiler)
	if err != nil {
		return nil, err
	}

	importlibBootstrapPath := filepath.Join(o.BuildDir, "importlib_bootstrap")
	if err := os.WriteFile(importlibBootstrapPath, importlib.BootstrapBytecode, 0o644); err != nil {
		return nil, repackerr.NewIoError("write", importlibBootstrapPath, err)
	}
	importlibExternalPath := filepath.Join(o.BuildDir, "importlib_bootstrap_external")
	if err := os.WriteFile(importlibExternalPath, importlib.BootstrapExternalBytecode, 0o644); err != nil {
		return nil, repackerr.NewIoError("write", importlibExternalPath, err)
	}

	if o.ShowProgress {
		attachProgressBar(compiler)
	}

	console.Infof("resolving Python resources (modules, extensions, resource data, etc)")
	resources, err := o.resolveResources(compiler)
	if err != nil {
		return nil, err
	}

	console.Infof("resolved %d source modules, %d bytecode modules, %d unique modules, %d extensions",
		len(resources.ModuleSources), len(resources.ModuleBytecodes), len(resources.AllModules), len(resources.ExtensionModules))

	console.Infof("writing packed Python module and resource data")
	moduleNamesPath := filepath.Join(o.BuildDir, "py-module-names")
	if err := writeModuleNamesFile(moduleNamesPath, resources.AllModules); err != nil {
		return nil, err
	}

	moduleSourcesPath := filepath.Join(o.BuildDir, "py-modules")
	if err := writeResourceBlob(moduleSourcesPath, resources.ModuleSources); err != nil {
		return nil, err
	}

	moduleBytecodePath := filepath.Join(o.BuildDir, "pyc-modules")
	if err := writeResourceBlob(moduleBytecodePath, resources.ModuleBytecodes); err != nil {
		return nil, err
	}

	console.Infof("generating custom link library containing Python")
	nativeCompiler := o.NativeCompiler
	if nativeCompiler == nil {
		nativeCompiler = linker.NewCCDriver()
	}
	link := linker.New(o.Distribution, nativeCompiler, o.TargetOS, o.BuildDir)
	link.OptLevel = o.OptLevel
	linkResult, err := link.Link(resources.ExtensionModules)
	if err != nil {
		return nil, err
	}

	runtimeConfigText := RenderRuntimeConfig(o.Config.Python, BlobPaths{
		ImportlibBootstrap:         importlibBootstrapPath,
		ImportlibBootstrapExternal: importlibExternalPath,
		ModuleSources:              moduleSourcesPath,
		ModuleBytecode:             moduleBytecodePath,
	})
	runtimeConfigPath := filepath.Join(o.OutDir, "runtime_config.txt")
	if err := os.WriteFile(runtimeConfigPath, []byte(runtimeConfigText), 0o644); err != nil {
		return nil, repackerr.NewIoError("write", runtimeConfigPath, err)
	}

	directives := o.buildDirectives(resources, linkResult)

	return &EmbeddedConfig{
		Config:                 o.Config,
		Resources:              resources,
		ModuleNamesPath:        moduleNamesPath,
		ModuleSourcesPath:      moduleSourcesPath,
		ModuleBytecodePath:     moduleBytecodePath,
		ImportlibBootstrapPath: importlibBootstrapPath,
		ImportlibExternalPath:  importlibExternalPath,
		LibpythonPath:          linkResult.LibraryPath,
		RuntimeConfigPath:      runtimeConfigPath,
		Directives:             directives,
	}, nil
}

// resolveResources runs rule resolution over every configured rule
// in order, then reduction over the accumulated outputs.
func (o *Orchestrator) resolveResources(compiler *bytecode.Compiler) (*stage.Resources, error) {
	resolver := rules.New(o.Distribution, o.TargetOS)

	outputs := make([]rules.RuleOutput, 0, len(o.Config.Rules))
	for _, rule := range o.Config.Rules {
		out, err := resolver.Resolve(rule)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}

	reducer := stage.New(o.Distribution, compiler, o.TargetOS)
	return reducer.Reduce(outputs)
}

// buildDirectives renders the build-script directive lines: a
// rerun-if-changed for the config file, one for every file a filter rule
// consumed, one for the build script itself, the PYOXIDIZER_CONFIG
// rerun-if-env-changed line, then the libpython linker's directives in
// the order pkg/linker already resolved them.
func (o *Orchestrator) buildDirectives(resources *stage.Resources, link *linker.Result) []string {
	var lines []string

	if o.ConfigPath != "" {
		lines = append(lines, "<rerun-if-changed="+o.ConfigPath+">")
	}
	for _, p := range resources.ReadFiles {
		lines = append(lines, "<rerun-if-changed="+p+">")
	}
	if o.BuildScriptPath != "" {
		lines = append(lines, "<rerun-if-changed="+o.BuildScriptPath+">")
	}
	lines = append(lines, "<rerun-if-env-changed=PYOXIDIZER_CONFIG>")

	for _, d := range link.Directives {
		switch d.Kind {
		case "static":
			lines = append(lines, "<rustc-link-lib=static="+d.Name+">")
		case "framework":
			lines = append(lines, "<rustc-link-lib=framework="+d.Name+">")
		default:
			lines = append(lines, "<rustc-link-lib="+d.Name+">")
		}
	}

	return lines
}

func writeModuleNamesFile(path string, names []string) error {
	sorted := append([]string{}, names...)
	sort.Strings(sorted)
	content := strings.Join(sorted, "\n")
	if len(sorted) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return repackerr.NewIoError("write", path, err)
	}
	return nil
}

func writeResourceBlob(path string, entries map[string][]byte) error {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	blobEntries := make([]blob.Entry, 0, len(names))
	for _, name := range names {
		blobEntries = append(blobEntries, blob.Entry{Name: name, Data: entries[name]})
	}

	f, err := os.Create(path)
	if err != nil {
		return repackerr.NewIoError("create", path, err)
	}
	defer f.Close()

	if err := blob.Write(f, blobEntries); err != nil {
		return err
	}
	return nil
}

// attachProgressBar wires compiler.OnProgress to an mpb bar created
// lazily on the first callback, once the batch total is known, and left
// running until the batch's final callback fills it.
func attachProgressBar(compiler *bytecode.Compiler) {
	p := mpb.New(mpb.WithOutput(os.Stderr), mpb.WithWidth(60), mpb.WithRefreshRate(180*time.Millisecond))
	var bar *mpb.Bar

	compiler.OnProgress = func(done, total int) {
		if bar == nil {
			bar = p.AddBar(int64(total),
				mpb.PrependDecorators(decor.Name("compiling bytecode: ")),
				mpb.AppendDecorators(decor.Percentage()),
			)
		}
		bar.SetCurrent(int64(done))
		if done == total {
			p.Wait()
		}
	}
}
