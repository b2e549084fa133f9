package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicate/pyrepack/pkg/distro"
	"github.com/replicate/pyrepack/pkg/resource"
	"github.com/replicate/pyrepack/pkg/rules"
)

func TestRequiredExtensionsClosure(t *testing.T) {
	// S6 — required closure.
	d := &distro.Distribution{
		ExtensionModules: map[string][]distro.ExtensionModuleVariant{
			"_io":  {{Variant: "default", BuiltinDefault: true, InitFunc: "PyInit__io"}},
			"json": {{Variant: "default", InitFunc: "PyInit_json"}},
		},
	}
	red := New(d, nil, "linux")

	out := rules.RuleOutput{Actions: []resource.Action{
		resource.AddAction(resource.ExtensionModule("json", resource.ExtensionVariant{VariantName: "default", InitFunc: "PyInit_json"})),
	}}

	res, err := red.Reduce([]rules.RuleOutput{out})
	require.NoError(t, err)

	_, hasIO := res.ExtensionModules["_io"]
	require.True(t, hasIO, "_io should be force-added as builtin_default")
	_, hasJSON := res.ExtensionModules["json"]
	require.True(t, hasJSON)
}

func TestIgnoredExtensionsRemoved(t *testing.T) {
	d := &distro.Distribution{}
	red := New(d, nil, "linux")

	out := rules.RuleOutput{Actions: []resource.Action{
		resource.AddAction(resource.ExtensionModule("_crypt", resource.ExtensionVariant{VariantName: "default", InitFunc: "PyInit__crypt"})),
	}}

	res, err := red.Reduce([]rules.RuleOutput{out})
	require.NoError(t, err)

	_, present := res.ExtensionModules["_crypt"]
	require.False(t, present, "_crypt is on linux's ignore list")
}

func TestFilterIdempotence(t *testing.T) {
	// Invariant 4 — filter idempotence.
	dir := t.TempDir()
	whitelistPath := filepath.Join(dir, "whitelist.txt")
	require.NoError(t, os.WriteFile(whitelistPath, []byte("# comment\nkeep.me\n\n"), 0o644))

	d := &distro.Distribution{}

	actions := []resource.Action{
		resource.AddAction(resource.ModuleSource("keep.me", []byte("x"))),
		resource.AddAction(resource.ModuleSource("drop.me", []byte("y"))),
	}

	ruleOutputs := []rules.RuleOutput{
		{Actions: actions},
		{Filter: &rules.FilterSentinel{Paths: []string{whitelistPath}}},
	}

	once, err := New(d, nil, "linux").Reduce(ruleOutputs)
	require.NoError(t, err)

	twiceOutputs := append(ruleOutputs, rules.RuleOutput{Filter: &rules.FilterSentinel{Paths: []string{whitelistPath}}})
	twice, err := New(d, nil, "linux").Reduce(twiceOutputs)
	require.NoError(t, err)

	require.Equal(t, once.ModuleSources, twice.ModuleSources)
	require.Contains(t, once.ModuleSources, "keep.me")
	require.NotContains(t, once.ModuleSources, "drop.me")
}

func TestAllModulesUnion(t *testing.T) {
	// Module-set law (invariant 3).
	d := &distro.Distribution{}
	red := New(d, nil, "linux")

	actions := []resource.Action{
		resource.AddAction(resource.ModuleSource("a", []byte("1"))),
	}
	res, err := red.Reduce([]rules.RuleOutput{{Actions: actions}})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, res.AllModules)
}
