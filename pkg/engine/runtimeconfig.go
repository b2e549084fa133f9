package engine

import (
	"fmt"
	"strings"

	"github.com/replicate/pyrepack/pkg/manifest"
)

// RenderRuntimeConfig renders the runtime-configuration literal: a
// single factory definition returning a record with the scalar fields
// from rt plus the four blob paths and run mode, rendered in the exact
// field order and `Some(...)`/`None` style of the original
// derive_python_config, since the downstream loader is the literal's
// sole consumer and the format must stay in lock-step with it. String
// escaping is double-quotes-only, no other characters are escaped.
func RenderRuntimeConfig(rt manifest.PythonRuntime, blobs BlobPaths) string {
	var b strings.Builder

	b.WriteString("fn default_runtime_config() -> RuntimeConfig {\n")
	b.WriteString("    RuntimeConfig {\n")
	fmt.Fprintf(&b, "        program_name: %s,\n", quote(rt.ProgramName))
	fmt.Fprintf(&b, "        standard_io_encoding: %s,\n", optionalString(rt.StandardIOEncoding))
	fmt.Fprintf(&b, "        standard_io_errors: %s,\n", optionalString(rt.StandardIOErrors))
	fmt.Fprintf(&b, "        opt_level: %d,\n", rt.OptLevel)
	b.WriteString("        use_custom_importlib: true,\n")
	fmt.Fprintf(&b, "        filesystem_importer: %t,\n", rt.FilesystemImporter)
	fmt.Fprintf(&b, "        sys_paths: [%s].to_vec(),\n", joinQuoted(rt.SysPaths))
	fmt.Fprintf(&b, "        import_site: %t,\n", rt.ImportSite)
	fmt.Fprintf(&b, "        import_user_site: %t,\n", rt.ImportUserSite)
	fmt.Fprintf(&b, "        ignore_python_env: %t,\n", rt.IgnorePythonEnv)
	fmt.Fprintf(&b, "        dont_write_bytecode: %t,\n", rt.DontWriteBytecode)
	fmt.Fprintf(&b, "        unbuffered_stdio: %t,\n", rt.UnbufferedStdio)
	fmt.Fprintf(&b, "        frozen_importlib_data: include_bytes(%s),\n", quote(blobs.ImportlibBootstrap))
	fmt.Fprintf(&b, "        frozen_importlib_external_data: include_bytes(%s),\n", quote(blobs.ImportlibBootstrapExternal))
	fmt.Fprintf(&b, "        py_modules_data: include_bytes(%s),\n", quote(blobs.ModuleSources))
	fmt.Fprintf(&b, "        pyc_modules_data: include_bytes(%s),\n", quote(blobs.ModuleBytecode))
	b.WriteString("        argvb: false,\n")
	fmt.Fprintf(&b, "        rust_allocator_raw: %t,\n", rt.RustAllocatorRaw)
	fmt.Fprintf(&b, "        write_modules_directory_env: %s,\n", optionalString(rt.WriteModulesDirectoryEnv))
	fmt.Fprintf(&b, "        run: %s,\n", renderRunMode(rt.Run))
	b.WriteString("    }\n")
	b.WriteString("}\n")

	return b.String()
}

func renderRunMode(run manifest.RunMode) string {
	switch run.Kind {
	case manifest.RunModule:
		return fmt.Sprintf("PythonRunMode::Module { module: %s }", quote(run.Module))
	case manifest.RunEval:
		return fmt.Sprintf("PythonRunMode::Eval { code: %s }", quote(run.Code))
	default:
		return "PythonRunMode::Repl"
	}
}

func optionalString(s *string) string {
	if s == nil {
		return "None"
	}
	return fmt.Sprintf("Some(%s)", quote(*s))
}

func joinQuoted(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = quote(s)
	}
	return strings.Join(quoted, ", ")
}

// quote wraps s in double quotes, escaping only the double-quote
// character itself; other characters pass through unescaped.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
