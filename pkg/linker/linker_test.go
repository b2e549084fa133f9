package linker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicate/pyrepack/pkg/distro"
	"github.com/replicate/pyrepack/pkg/resource"
)

// fakeCompiler records every CompileStaticArchive call instead of
// shelling out to a real toolchain, so these tests exercise staging and
// directive-resolution logic without requiring cc/ar on the test host.
type fakeCompiler struct {
	calls []CompileOptions
}

func (f *fakeCompiler) CompileStaticArchive(opts CompileOptions) error {
	f.calls = append(f.calls, opts)
	// Touch the archive file so any path-existence assertions pass.
	return os.WriteFile(filepath.Join(opts.OutDir, "lib"+opts.ArchiveName+".a"), nil, 0o644)
}

func newTestDistribution(t *testing.T, libDir string) *distro.Distribution {
	t.Helper()

	coreObj := filepath.Join(t.TempDir(), "core.o")
	require.NoError(t, os.WriteFile(coreObj, []byte("core"), 0o644))

	sslLib := filepath.Join(libDir, "ssl.a")
	require.NoError(t, os.WriteFile(sslLib, []byte("ssl"), 0o644))

	headerPath := filepath.Join(t.TempDir(), "Python.h")
	require.NoError(t, os.WriteFile(headerPath, []byte("//python.h"), 0o644))

	return &distro.Distribution{
		OS: "linux",
		ObjsCore: map[string]string{
			"Modules/main.o": coreObj,
		},
		Includes: map[string]string{
			"Python.h": headerPath,
		},
		Libraries: map[string]string{
			"ssl": sslLib,
		},
		LinksCore: []distro.LibraryDependency{
			{Name: "m", System: true},
		},
		ExtensionModules: map[string][]distro.ExtensionModuleVariant{
			"_ssl": {{
				Variant:     "default",
				InitFunc:    "PyInit__ssl",
				ObjectPaths: []string{filepath.Join(t.TempDir(), "_ssl.o")},
				Links:       []distro.LibraryDependency{{Name: "ssl", StaticPath: sslLib}},
			}},
		},
	}
}

func TestLinkResolvesLibrariesFrameworksAndSystemLibsInOrder(t *testing.T) {
	buildDir := t.TempDir()
	d := newTestDistribution(t, t.TempDir())

	compiler := &fakeCompiler{}
	l := New(d, compiler, "linux", buildDir)

	extensions := map[string]resource.ExtensionVariant{
		"_ssl": {VariantName: "default", InitFunc: "PyInit__ssl"},
	}

	result, err := l.Link(extensions)
	require.NoError(t, err)

	require.Len(t, compiler.calls, 2)
	require.Equal(t, "pyembeddedconfig", compiler.calls[0].ArchiveName)
	require.Equal(t, "pythonXY", compiler.calls[1].ArchiveName)

	var kinds []string
	for _, d := range result.Directives {
		kinds = append(kinds, d.Kind+":"+d.Name)
	}
	// static (pyembeddedconfig always first), then ssl (extension-required
	// static lib), then the core's "m" system library. "m" is on linux's
	// targetdata.IgnoreLibraries, but that list only governs needed_libraries
	// resolution, not the system-library bucket LinksCore feeds, so "m" is
	// still emitted.
	require.Equal(t, "static:pyembeddedconfig", kinds[0])
	require.Contains(t, kinds, "static:ssl")
	require.Contains(t, kinds, "dylib:m")
}

func TestLinkSkipsBuiltinDefaultExtensionObjects(t *testing.T) {
	buildDir := t.TempDir()
	d := newTestDistribution(t, t.TempDir())

	compiler := &fakeCompiler{}
	l := New(d, compiler, "linux", buildDir)

	extensions := map[string]resource.ExtensionVariant{
		"_ssl": {VariantName: "default", InitFunc: "PyInit__ssl", BuiltinDefault: true},
	}

	_, err := l.Link(extensions)
	require.NoError(t, err)

	// pythonXY compile call should only carry the staged core object, not
	// _ssl's, since builtin_default extensions are already in core objects.
	pythonXYCall := compiler.calls[1]
	for _, obj := range pythonXYCall.Objects {
		require.NotContains(t, obj, "_ssl.o")
	}
}

func TestLinkSkipsConfigObjectSuffix(t *testing.T) {
	buildDir := t.TempDir()
	d := newTestDistribution(t, t.TempDir())
	d.ObjsCore["Modules/config.o"] = filepath.Join(t.TempDir(), "config.o")
	require.NoError(t, os.WriteFile(d.ObjsCore["Modules/config.o"], []byte("x"), 0o644))

	compiler := &fakeCompiler{}
	l := New(d, compiler, "linux", buildDir)

	_, err := l.Link(map[string]resource.ExtensionVariant{})
	require.NoError(t, err)

	for _, obj := range compiler.calls[1].Objects {
		require.NotContains(t, obj, "config.o")
	}
}

func TestLinkIgnoresStaticLinksCoreEntries(t *testing.T) {
	buildDir := t.TempDir()
	d := newTestDistribution(t, t.TempDir())
	// A static-path LinksCore entry mirrors a library already folded into
	// the core object files pythonXY links directly; it must not also be
	// requested as a needed library, or resolveLibraries would fail since
	// nothing named "z" is in d.Libraries.
	d.LinksCore = append(d.LinksCore, distro.LibraryDependency{Name: "z", StaticPath: "/nonexistent/libz.a"})

	compiler := &fakeCompiler{}
	l := New(d, compiler, "linux", buildDir)

	_, err := l.Link(map[string]resource.ExtensionVariant{})
	require.NoError(t, err)
}

func TestLinkFailsWhenRequiredLibraryMissing(t *testing.T) {
	buildDir := t.TempDir()
	d := newTestDistribution(t, t.TempDir())
	delete(d.Libraries, "ssl")

	compiler := &fakeCompiler{}
	l := New(d, compiler, "linux", buildDir)

	_, err := l.Link(map[string]resource.ExtensionVariant{
		"_ssl": {VariantName: "default", InitFunc: "PyInit__ssl"},
	})
	require.Error(t, err)
	var linkErr *LinkError
	require.ErrorAs(t, err, &linkErr)
	require.Equal(t, "ssl", linkErr.Library)
}
