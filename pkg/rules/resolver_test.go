package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicate/pyrepack/pkg/distro"
	"github.com/replicate/pyrepack/pkg/manifest"
)

func minimalDistribution() *distro.Distribution {
	return &distro.Distribution{
		Version: "3.9.7",
		ExtensionModules: map[string][]distro.ExtensionModuleVariant{
			"_io":      {{Variant: "default", BuiltinDefault: true, InitFunc: "PyInit__io"}},
			"zlib":     {{Variant: "default", Required: true, InitFunc: "PyInit_zlib"}},
			"readline": {{Variant: "default", InitFunc: "PyInit_readline"}},
		},
	}
}

func TestResolveStdlibExtensionsPolicyMinimal(t *testing.T) {
	// S1 — minimal stdlib.
	r := New(minimalDistribution(), "linux")
	out, err := r.Resolve(manifest.Rule{Type: manifest.RuleStdlibExtensionsPolicy, Policy: "minimal"})
	require.NoError(t, err)

	var names []string
	for _, a := range out.Actions {
		names = append(names, a.Resource.Name)
	}
	require.ElementsMatch(t, []string{"_io", "zlib"}, names)
}

func TestResolveStdlibExtensionsPolicyUnknown(t *testing.T) {
	r := New(minimalDistribution(), "linux")
	_, err := r.Resolve(manifest.Rule{Type: manifest.RuleStdlibExtensionsPolicy, Policy: "bogus"})
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestResolveStdlibExtensionsPolicyNoLibraries(t *testing.T) {
	// S4 — variant selection.
	d := &distro.Distribution{
		ExtensionModules: map[string][]distro.ExtensionModuleVariant{
			"ssl": {
				{Variant: "openssl-1.1", Links: []distro.LibraryDependency{{Name: "ssl", StaticPath: "/x/libssl.a"}}},
				{Variant: "openssl-3", Links: nil},
			},
		},
	}
	r := New(d, "linux")
	out, err := r.Resolve(manifest.Rule{Type: manifest.RuleStdlibExtensionsPolicy, Policy: "no-libraries"})
	require.NoError(t, err)
	require.Len(t, out.Actions, 1)
	require.Equal(t, "openssl-3", out.Actions[0].Resource.Variant.VariantName)
}

func TestResolveStdlibExtensionsExplicitIncludesIgnoresUnknown(t *testing.T) {
	r := New(minimalDistribution(), "linux")
	out, err := r.Resolve(manifest.Rule{Type: manifest.RuleStdlibExtensionsExplicitIncludes, Names: []string{"zlib", "not_present"}})
	require.NoError(t, err)
	require.Len(t, out.Actions, 1)
	require.Equal(t, "zlib", out.Actions[0].Resource.Name)
}

func TestResolveStdlibExtensionVariantMissingIsFatal(t *testing.T) {
	r := New(minimalDistribution(), "linux")
	_, err := r.Resolve(manifest.Rule{Type: manifest.RuleStdlibExtensionVariant, Extension: "zlib", Variant: "nonexistent"})
	require.Error(t, err)
}

func TestFilterFileIncludeIsSentinel(t *testing.T) {
	r := New(minimalDistribution(), "linux")
	out, err := r.Resolve(manifest.Rule{Type: manifest.RuleFilterFileInclude, Path: "/tmp/whitelist.txt"})
	require.NoError(t, err)
	require.Nil(t, out.Actions)
	require.NotNil(t, out.Filter)
	require.Equal(t, []string{"/tmp/whitelist.txt"}, out.Filter.Paths)
}
