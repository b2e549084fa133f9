package distro

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dist.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"python_exe": "/usr/bin/python3",
		"os": "linux",
		"version": "3.9.1",
		"py_modules": {"json": "/dist/json.py"},
		"extension_modules": {
			"_io": [{"variant": "default", "builtin_default": true, "init_fn": "PyInit__io"}]
		},
		"objs_core": {},
		"includes": {},
		"libraries": {}
	}`), 0o644))

	d, err := LoadJSON(path)
	require.NoError(t, err)
	require.Equal(t, "/usr/bin/python3", d.PythonExe)
	require.Equal(t, "linux", d.OS)
	v, ok := d.FirstVariant("_io")
	require.True(t, ok)
	require.True(t, v.BuiltinDefault)
}

func TestLoadJSONMissingFile(t *testing.T) {
	_, err := LoadJSON("/nonexistent/dist.json")
	require.Error(t, err)
}
