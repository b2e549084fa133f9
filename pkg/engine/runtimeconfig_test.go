package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicate/pyrepack/pkg/manifest"
)

func TestRenderRuntimeConfigFieldOrderAndDefaults(t *testing.T) {
	rt := manifest.PythonRuntime{
		ProgramName:        "python",
		OptLevel:           0,
		FilesystemImporter: true,
		SysPaths:           []string{"$ORIGIN/lib"},
		DontWriteBytecode:  true,
		Run:                manifest.RunMode{Kind: manifest.RunRepl},
	}

	out := RenderRuntimeConfig(rt, BlobPaths{
		ImportlibBootstrap:         "/build/importlib_bootstrap",
		ImportlibBootstrapExternal: "/build/importlib_bootstrap_external",
		ModuleSources:              "/build/py-modules",
		ModuleBytecode:             "/build/pyc-modules",
	})

	require.Contains(t, out, `program_name: "python",`)
	require.Contains(t, out, "standard_io_encoding: None,")
	require.Contains(t, out, "use_custom_importlib: true,")
	require.Contains(t, out, `sys_paths: ["$ORIGIN/lib"].to_vec(),`)
	require.Contains(t, out, `frozen_importlib_data: include_bytes("/build/importlib_bootstrap"),`)
	require.Contains(t, out, "argvb: false,")
	require.Contains(t, out, "run: PythonRunMode::Repl,")

	// use_custom_importlib must precede filesystem_importer, matching the runtime-configuration literal's
	// declared field order.
	require.Less(t,
		strings.Index(out, "use_custom_importlib"),
		strings.Index(out, "filesystem_importer"),
	)
}

func TestRenderRuntimeConfigModuleRunMode(t *testing.T) {
	rt := manifest.PythonRuntime{
		ProgramName: "python",
		Run:         manifest.RunMode{Kind: manifest.RunModule, Module: "myapp.main"},
	}

	out := RenderRuntimeConfig(rt, BlobPaths{})
	require.Contains(t, out, `run: PythonRunMode::Module { module: "myapp.main" },`)
}

func TestRenderRuntimeConfigOptionalFieldsSome(t *testing.T) {
	encoding := "utf-8"
	rt := manifest.PythonRuntime{
		ProgramName:        "python",
		StandardIOEncoding: &encoding,
		Run:                manifest.RunMode{Kind: manifest.RunRepl},
	}

	out := RenderRuntimeConfig(rt, BlobPaths{})
	require.Contains(t, out, `standard_io_encoding: Some("utf-8"),`)
}

func TestQuoteEscapesOnlyDoubleQuotes(t *testing.T) {
	require.Equal(t, `"a\"b"`, quote(`a"b`))
}
