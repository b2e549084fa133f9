// Package manifest defines the YAML shape of the packaging configuration
// consumed by the repackaging engine: the ordered list of packaging
// rules (the PackagingRule variants) plus the runtime-configuration fields
// rendered into the factory literal by pkg/engine. This is a
// test-harness and cmd/ convenience format, not a reimplementation of
// the Starlark/TOML front-end that front-ends a real build — that
// front-end is an external collaborator, out of scope for this repo.
package manifest

// RuleType discriminates the closed set of PackagingRule variants. Go has
// no sum type, so the variants are represented as one flat Rule struct
// carrying only the fields its Type uses, the same discriminated-struct
// idiom the rest of this repository (resource.PythonResource,
// resource.Action) uses for every other tagged union in the original
// design.
type RuleType string

const (
	RuleStdlibExtensionsPolicy            RuleType = "stdlib_extensions_policy"
	RuleStdlibExtensionsExplicitIncludes  RuleType = "stdlib_extensions_explicit_includes"
	RuleStdlibExtensionsExplicitExcludes  RuleType = "stdlib_extensions_explicit_excludes"
	RuleStdlibExtensionVariant            RuleType = "stdlib_extension_variant"
	RuleStdlib                            RuleType = "stdlib"
	RuleVirtualenv                        RuleType = "virtualenv"
	RulePackageRoot                       RuleType = "package_root"
	RulePipInstallSimple                  RuleType = "pip_install_simple"
	RuleFilterFileInclude                 RuleType = "filter_file_include"
	RuleFilterFilesInclude                RuleType = "filter_files_include"
)

// knownRuleTypes is used by validation to reject unrecognized Type values
// up front, before the resolver has to fail mid-pass.
var knownRuleTypes = map[RuleType]bool{
	RuleStdlibExtensionsPolicy:           true,
	RuleStdlibExtensionsExplicitIncludes: true,
	RuleStdlibExtensionsExplicitExcludes: true,
	RuleStdlibExtensionVariant:           true,
	RuleStdlib:                           true,
	RuleVirtualenv:                       true,
	RulePackageRoot:                      true,
	RulePipInstallSimple:                 true,
	RuleFilterFileInclude:                true,
	RuleFilterFilesInclude:               true,
}

// Rule is one entry of the ordered packaging-rule list. Only the fields
// relevant to Type are populated; the comment above each field group
// below names the variants that read it.
type Rule struct {
	Type RuleType `yaml:"type"`

	// StdlibExtensionsPolicy
	Policy string `yaml:"policy,omitempty"`

	// StdlibExtensionsExplicitIncludes / StdlibExtensionsExplicitExcludes
	Names []string `yaml:"names,omitempty"`

	// StdlibExtensionVariant
	Extension string `yaml:"extension,omitempty"`
	Variant   string `yaml:"variant,omitempty"`

	// Stdlib / Virtualenv / PackageRoot / PipInstallSimple
	OptimizeLevel      int  `yaml:"optimize_level,omitempty"`
	ExcludeTestModules bool `yaml:"exclude_test_modules,omitempty"`
	IncludeSource      bool `yaml:"include_source,omitempty"`

	// Virtualenv / PackageRoot
	Path     string   `yaml:"path,omitempty"`
	Excludes []string `yaml:"excludes,omitempty"`

	// PackageRoot
	Packages []string `yaml:"packages,omitempty"`

	// PipInstallSimple
	Package string `yaml:"package,omitempty"`

	// FilterFileInclude reuses Path; FilterFilesInclude uses Glob.
	Glob string `yaml:"glob,omitempty"`
}

// RunModeKind discriminates the Repl/Module/Eval run-mode variant.
type RunModeKind string

const (
	RunRepl   RunModeKind = "repl"
	RunModule RunModeKind = "module"
	RunEval   RunModeKind = "eval"
)

// RunMode is the rendered "run" field of the runtime-configuration
// literal: exactly one of Repl, Module{module}, Eval{code}.
type RunMode struct {
	Kind   RunModeKind `yaml:"mode"`
	Module string      `yaml:"module,omitempty"`
	Code   string      `yaml:"code,omitempty"`
}

// PythonRuntime holds the scalar fields of the runtime-configuration
// literal that are not themselves derived from resolution: program
// identity, interpreter flags, and the run mode. The four embedded blobs
// (importlib bootstrap/external, module sources, module bytecode) are
// filled in by pkg/engine after resolution, not read from the manifest.
type PythonRuntime struct {
	ProgramName              string   `yaml:"program_name"`
	StandardIOEncoding       *string  `yaml:"standard_io_encoding,omitempty"`
	StandardIOErrors         *string  `yaml:"standard_io_errors,omitempty"`
	OptLevel                 int      `yaml:"opt_level"`
	FilesystemImporter       bool     `yaml:"filesystem_importer"`
	SysPaths                 []string `yaml:"sys_paths"`
	ImportSite               bool     `yaml:"import_site"`
	ImportUserSite           bool     `yaml:"import_user_site"`
	IgnorePythonEnv          bool     `yaml:"ignore_python_env"`
	DontWriteBytecode        bool     `yaml:"dont_write_bytecode"`
	UnbufferedStdio          bool     `yaml:"unbuffered_stdio"`
	RustAllocatorRaw         bool     `yaml:"rust_allocator_raw"`
	WriteModulesDirectoryEnv *string  `yaml:"write_modules_directory_env,omitempty"`
	Run                      RunMode  `yaml:"run"`
}

// Config is the parsed packaging configuration: an ordered rule list plus
// the runtime-configuration scalars.
type Config struct {
	Rules  []Rule        `yaml:"rules"`
	Python PythonRuntime `yaml:"python"`
}

// DefaultConfig returns a Config with the same defaults derive_python_config
// assumed in the original implementation: site import disabled, a custom
// importlib, filesystem importer enabled, opt_level 0, REPL run mode.
func DefaultConfig() *Config {
	return &Config{
		Python: PythonRuntime{
			ProgramName:        "python",
			OptLevel:           0,
			FilesystemImporter: true,
			ImportSite:         false,
			ImportUserSite:     false,
			IgnorePythonEnv:    false,
			DontWriteBytecode:  true,
			UnbufferedStdio:    false,
			RustAllocatorRaw:   false,
			Run:                RunMode{Kind: RunRepl},
		},
	}
}
