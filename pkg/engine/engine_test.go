package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicate/pyrepack/pkg/blob"
	"github.com/replicate/pyrepack/pkg/linker"
	"github.com/replicate/pyrepack/pkg/stage"
)

// Orchestrator.Run spawns the distribution's own Python interpreter
// (pkg/bytecode) and a native C compiler (pkg/linker), both external
// collaborators outside this repository's control; exercising it
// end-to-end belongs to an integration test with a real distribution
// fixture, not this package's unit tests. The pure logic below — output
// file shapes and directive ordering — is covered directly.

func TestWriteModuleNamesFileSortsAndNewlineTerminates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "py-module-names")

	require.NoError(t, writeModuleNamesFile(path, []string{"zlib", "_io", "json"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "_io\njson\nzlib\n", string(data))
}

func TestWriteModuleNamesFileEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "py-module-names")

	require.NoError(t, writeModuleNamesFile(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "", string(data))
}

func TestWriteResourceBlobRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "py-modules")

	entries := map[string][]byte{
		"b.mod": []byte("second"),
		"a.mod": []byte("first"),
	}
	require.NoError(t, writeResourceBlob(path, entries))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	decoded, err := blob.Read(f)
	require.NoError(t, err)
	require.Equal(t, []blob.Entry{
		{Name: "a.mod", Data: []byte("first")},
		{Name: "b.mod", Data: []byte("second")},
	}, decoded)
}

func TestBuildDirectivesOrdering(t *testing.T) {
	o := &Orchestrator{ConfigPath: "pyrepack.linux.yaml", BuildScriptPath: "cmd/pyrepack/main.go"}
	resources := &stage.Resources{ReadFiles: []string{"filter.txt"}}
	link := &linker.Result{Directives: []linker.LinkDirective{
		{Kind: "static", Name: "pyembeddedconfig"},
		{Kind: "static", Name: "ssl"},
		{Kind: "framework", Name: "CoreFoundation"},
		{Kind: "dylib", Name: "m"},
	}}

	lines := o.buildDirectives(resources, link)

	require.Equal(t, []string{
		"<rerun-if-changed=pyrepack.linux.yaml>",
		"<rerun-if-changed=filter.txt>",
		"<rerun-if-changed=cmd/pyrepack/main.go>",
		"<rerun-if-env-changed=PYOXIDIZER_CONFIG>",
		"<rustc-link-lib=static=pyembeddedconfig>",
		"<rustc-link-lib=static=ssl>",
		"<rustc-link-lib=framework=CoreFoundation>",
		"<rustc-link-lib=m>",
	}, lines)
}

func TestBuildDirectivesOmitsUnsetPaths(t *testing.T) {
	o := &Orchestrator{}
	resources := &stage.Resources{}
	link := &linker.Result{}

	lines := o.buildDirectives(resources, link)

	require.Equal(t, []string{"<rerun-if-env-changed=PYOXIDIZER_CONFIG>"}, lines)
}
