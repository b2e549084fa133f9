package configc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicate/pyrepack/pkg/resource"
)

func TestInittabOrdering(t *testing.T) {
	// S5 — inittab ordering.
	extensions := map[string]resource.ExtensionVariant{
		"zlib": {InitFunc: "PyInit_zlib"},
		"_io":  {InitFunc: "PyInit__io"},
		"_ssl": {InitFunc: "PyInit__ssl"},
	}

	require.Equal(t, []string{"_io", "_ssl", "zlib"}, InittabNames(extensions))

	out := Generate(extensions)
	ioIdx := strings.Index(out, "PyInit__io")
	sslIdx := strings.Index(out, "PyInit__ssl")
	zlibIdx := strings.Index(out, "PyInit_zlib")
	require.True(t, ioIdx < sslIdx && sslIdx < zlibIdx)
}

func TestSkipsNullInitFunc(t *testing.T) {
	extensions := map[string]resource.ExtensionVariant{
		"builtin_thing": {InitFunc: "NULL"},
		"real_thing":    {InitFunc: "PyInit_real_thing"},
	}

	out := Generate(extensions)
	require.NotContains(t, out, "builtin_thing")
	require.Contains(t, out, "PyInit_real_thing")
	require.Equal(t, []string{"real_thing"}, InittabNames(extensions))
}

func TestSentinelAlwaysPresent(t *testing.T) {
	out := Generate(map[string]resource.ExtensionVariant{})
	require.Contains(t, out, "{0, 0},")
}
