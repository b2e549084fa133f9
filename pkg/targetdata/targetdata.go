// Package targetdata holds the fixed, target-parameterized tables the
// original design calls out explicitly as compile-time constants, not
// runtime globals: which stdlib packages are tests, which extensions are
// known to fail to link on a given OS, and which libraries that OS
// already provides.
package targetdata

// StdlibTestPackages is the fixed set of stdlib packages considered
// tests. A module name matching any of these under the dotted-name
// prefix rule (resource.MatchesPrefix) is excluded when a Stdlib rule
// sets ExcludeTestModules.
var StdlibTestPackages = []string{
	"bsddb.test",
	"ctypes.test",
	"distutils.tests",
	"email.test",
	"idlelib.idle_test",
	"json.tests",
	"lib-tk.test",
	"lib2to3.tests",
	"sqlite3.test",
	"test",
	"tkinter.test",
	"unittest.test",
}

// IgnoreExtensions lists extension modules known to fail to link on a
// given OS, forcibly removed by the resource reducer after
// the required-extensions closure is applied.
var IgnoreExtensions = map[string][]string{
	"linux": {"_crypt", "nis"},
	"macos": {"_curses", "_curses_panel", "readline"},
}

// IgnoreLibraries lists native libraries assumed to already be provided
// by the host OS, skipped when the libpython linker resolves
// needed_libraries against distribution.libraries.
var IgnoreLibraries = map[string][]string{
	"linux": {"dl", "m"},
	"macos": {"dl", "m"},
}
